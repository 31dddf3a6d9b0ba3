package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/taskviews/internal/activity"
	"github.com/matthewbaird/taskviews/internal/catalog"
	"github.com/matthewbaird/taskviews/internal/config"
	"github.com/matthewbaird/taskviews/internal/event"
	"github.com/matthewbaird/taskviews/internal/eventbus"
	"github.com/matthewbaird/taskviews/internal/preview"
	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/server"
	"github.com/matthewbaird/taskviews/internal/store"
	"github.com/matthewbaird/taskviews/internal/task"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "taskviews-server",
		Short:         "Serve saved task views, templates and the builder preview",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (or TASKVIEWS_CONFIG)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Engine.Location()
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}

	reg := task.Registry()
	engine := query.New(reg, query.WithLocation(loc))
	cat, err := catalog.Load(reg)
	if err != nil {
		return fmt.Errorf("loading template catalogue: %w", err)
	}

	var (
		views store.Store
		acts  activity.Store
	)
	if cfg.Database.IsSQLite() {
		sqlStore, err := store.OpenSQLite(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		actStore := activity.NewSQLStore(sqlStore.DB())
		if err := actStore.CreateTable(ctx); err != nil {
			return fmt.Errorf("creating activity table: %w", err)
		}
		views, acts = sqlStore, actStore
		log.Println("database migrated successfully")
	} else {
		views, acts = store.NewMemoryStore(), activity.NewMemoryStore()
		log.Println("using in-memory store")
	}
	defer views.Close()

	if cfg.Database.Seed != "" {
		tasks, err := task.LoadFixture(cfg.Database.Seed)
		if err != nil {
			return fmt.Errorf("loading seed tasks: %w", err)
		}
		if err := views.PutTasks(ctx, tasks...); err != nil {
			return fmt.Errorf("seeding tasks: %w", err)
		}
		log.Printf("seeded %d tasks from %s", len(tasks), cfg.Database.Seed)
	}

	bus := eventbus.New(cfg.Events.Buffer)
	bus.Subscribe("log", eventbus.NewLogConsumer())
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(acts)
	recorder.SetPublisher(bus)

	sessions := preview.NewManager(cfg.Preview.MaxAge, cfg.Preview.IdleTimeout, cfg.Preview.MaxSessions)
	go sessions.Run(ctx, time.Minute)

	return server.Run(ctx, server.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Engine:       engine,
		Store:        views,
		Catalog:      cat,
		Activity:     acts,
		Recorder:     recorder,
		Bus:          bus,
		Sessions:     sessions,
		RecordLimit:  cfg.Preview.RecordLimit,
	})
}
