package activity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testEntry(viewUID, eventType, scope, summary string, minutesAgo int) Entry {
	return Entry{
		EventID:    "test-" + summary,
		EventType:  eventType,
		OccurredAt: time.Now().Add(-time.Duration(minutesAgo) * time.Minute),
		ViewUID:    viewUID,
		Role:       RoleSubject,
		Scope:      scope,
		Summary:    summary,
		Payload:    []byte(`{"name":"x"}`),
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	sqlStore := NewSQLStore(db)
	if err := sqlStore.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return map[string]Store{"memory": NewMemoryStore(), "sqlite": sqlStore}
}

func TestStore_WriteAndQuery(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []Entry{
				testEntry("v1", "view_created", "p1", "Board created", 30),
				testEntry("v1", "view_updated", "p1", "Board updated", 10),
				testEntry("v2", "view_created", "", "Inbox created", 20),
			}
			if err := store.WriteEntries(ctx, entries); err != nil {
				t.Fatalf("WriteEntries: %v", err)
			}

			opts := DefaultQueryOptions()
			opts.ViewUID = "v1"
			results, _, total, err := store.Query(ctx, opts)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if total != 2 || len(results) != 2 {
				t.Fatalf("total = %d, results = %d, want 2", total, len(results))
			}
			if results[0].Summary != "Board updated" {
				t.Errorf("first = %q, want newest first", results[0].Summary)
			}
			if string(results[0].Payload) != `{"name":"x"}` {
				t.Errorf("payload = %s", results[0].Payload)
			}
		})
	}
}

func TestStore_QueryFilters(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.WriteEntries(ctx, []Entry{
				testEntry("v1", "view_created", "p1", "A", 5),
				testEntry("v2", "view_deleted", "p1", "B", 4),
				testEntry("v3", "view_created", "", "C", 3),
				testEntry("v4", "view_created", "", "Old", 60*24*90),
			})

			global := ""
			opts := DefaultQueryOptions()
			opts.Scope = &global
			_, _, total, _ := store.Query(ctx, opts)
			if total != 1 {
				t.Errorf("global scope total = %d, want 1 (old entry is outside the window)", total)
			}

			opts = DefaultQueryOptions()
			opts.EventTypes = []string{"view_deleted"}
			results, _, _, _ := store.Query(ctx, opts)
			if len(results) != 1 || results[0].ViewUID != "v2" {
				t.Errorf("expected only the deleted view, got %v", results)
			}
		})
	}
}

func TestStore_QueryPagination(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var entries []Entry
			for i := 0; i < 5; i++ {
				entries = append(entries, testEntry("v1", "view_updated", "", string(rune('a'+i)), i))
			}
			store.WriteEntries(ctx, entries)

			opts := DefaultQueryOptions()
			opts.Limit = 2
			page1, cursor, total, err := store.Query(ctx, opts)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if total != 5 || len(page1) != 2 || cursor == "" {
				t.Fatalf("page1 = %d entries, total %d, cursor %q", len(page1), total, cursor)
			}

			opts.Cursor = cursor
			page2, _, _, err := store.Query(ctx, opts)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(page2) != 2 || page2[0].Summary != "c" {
				t.Errorf("page2 = %v, want entries c and d", page2)
			}
		})
	}
}

func TestStore_Search(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store.WriteEntries(ctx, []Entry{
				testEntry("v1", "view_created", "", "View 'Sprint' created", 5),
				testEntry("v2", "view_created", "", "View 'Inbox' created", 4),
				testEntry("v3", "view_updated", "p1", "View 'Sprint review' updated", 3),
			})

			results, total, err := store.Search(ctx, "sprint", DefaultSearchOptions())
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if total != 2 || len(results) != 2 {
				t.Errorf("total = %d, results = %d, want 2", total, len(results))
			}

			results, total, _ = store.Search(ctx, "zzzznotfound", DefaultSearchOptions())
			if total != 0 || len(results) != 0 {
				t.Errorf("expected no results, got %d", total)
			}
		})
	}
}

func TestStore_Empty(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			results, _, total, err := store.Query(context.Background(), DefaultQueryOptions())
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if total != 0 || len(results) != 0 {
				t.Errorf("expected empty results from empty store")
			}
		})
	}
}
