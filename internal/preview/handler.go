// Package preview serves the view builder's live preview over a WebSocket.
// Each socket owns one draft view; every edit re-materializes the draft and
// streams the buckets back, so the builder can show results as the user
// types.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/store"
	"github.com/matthewbaird/taskviews/internal/view"
)

// Handler manages preview sockets.
type Handler struct {
	sessions    *Manager
	engine      *query.Engine
	records     store.RecordSource
	recordLimit int
}

// NewHandler creates a preview handler. recordLimit caps the records sent
// per bucket; zero means no cap.
func NewHandler(sessions *Manager, engine *query.Engine, records store.RecordSource, recordLimit int) *Handler {
	return &Handler{
		sessions:    sessions,
		engine:      engine,
		records:     records,
		recordLimit: recordLimit,
	}
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.sessions.Remove(sess.ID)

	// Server read/write timeouts would otherwise cut the socket off.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("preview: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	h.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{
			SessionID: sess.ID,
			Location:  h.engine.Location().String(),
		},
	})

	idle := h.sessions.IdleTimeout()
	var timer *time.Timer
	if idle > 0 {
		timer = time.AfterFunc(idle, func() {
			conn.Close(websocket.StatusPolicyViolation, "idle timeout")
		})
		defer timer.Stop()
	}

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("preview: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}
		if timer != nil {
			timer.Reset(idle)
		}
		if h.sessions.Get(sess.ID) == nil {
			h.sendError(ctx, conn, msg.ID, "session_expired", "preview session expired")
			conn.Close(websocket.StatusPolicyViolation, "session expired")
			return
		}
		sess.Touch()

		switch msg.Type {
		case "draft":
			h.handleDraft(ctx, conn, sess, msg)
		case "add_filter", "set_field", "set_operator", "set_value", "remove_filter":
			h.handleFilterEdit(ctx, conn, sess, msg)
		case "operators":
			h.handleOperators(ctx, conn, msg)
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *Handler) handleDraft(ctx context.Context, conn *websocket.Conn, sess *Session, msg ClientMessage) {
	var data DraftData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid draft data")
		return
	}
	draft, err := sess.Edit(func(v *view.View) error {
		next := data.View
		if next.Name == "" {
			next.Name = v.Name
		}
		if next.Filters == nil {
			next.Filters = []view.Filter{}
		}
		for i := range next.Filters {
			if next.Filters[i].ID == "" {
				next.Filters[i].ID = view.NewFilterID()
			}
		}
		if err := h.engine.CheckView(next); err != nil {
			return err
		}
		*v = next
		return nil
	})
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_view", err.Error())
		return
	}
	h.stream(ctx, conn, msg.ID, draft)
}

func (h *Handler) handleFilterEdit(ctx context.Context, conn *websocket.Conn, sess *Session, msg ClientMessage) {
	var data FilterData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid filter data")
		return
	}
	reg := h.engine.Registry()
	draft, err := sess.Edit(func(v *view.View) error {
		if msg.Type == "add_filter" {
			f, err := view.NewFilter(reg, data.Field)
			if err != nil {
				return err
			}
			if data.Logic != "" {
				f.Logic = data.Logic
			}
			v.Filters = append(v.Filters, f)
			return nil
		}

		i := slices.IndexFunc(v.Filters, func(f view.Filter) bool { return f.ID == data.FilterID })
		if i < 0 {
			return fmt.Errorf("%w '%s'", errUnknownFilter, data.FilterID)
		}
		f := &v.Filters[i]
		switch msg.Type {
		case "set_field":
			return f.SetField(reg, data.Field)
		case "set_operator":
			return f.SetOperator(reg, data.Operator)
		case "set_value":
			f.Value, f.Value2 = data.Value, data.Value2
			if data.Logic != "" {
				f.Logic = data.Logic
			}
		case "remove_filter":
			v.Filters = slices.Delete(v.Filters, i, i+1)
		}
		return nil
	})
	if err != nil {
		h.sendError(ctx, conn, msg.ID, errorCode(err), err.Error())
		return
	}
	h.stream(ctx, conn, msg.ID, draft)
}

var errUnknownFilter = errors.New("unknown filter")

func errorCode(err error) string {
	switch {
	case errors.Is(err, errUnknownFilter):
		return "unknown_filter"
	case errors.Is(err, schema.ErrUnknownField), errors.Is(err, schema.ErrUnknownOperator):
		return "invalid_view"
	}
	return "edit_error"
}

func (h *Handler) handleOperators(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data OperatorsData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid operators data")
		return
	}
	ops, err := h.engine.Registry().OperatorsFor(data.Field)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_view", err.Error())
		return
	}
	h.send(ctx, conn, ServerMessage{
		Type:      "operators",
		RequestID: msg.ID,
		Data:      OperatorsResult{Field: data.Field, Operators: ops},
	})
}

// stream echoes the draft, then sends meta, one message per bucket, and
// done.
func (h *Handler) stream(ctx context.Context, conn *websocket.Conn, requestID string, draft view.View) {
	start := time.Now()
	h.send(ctx, conn, ServerMessage{Type: "draft", RequestID: requestID, Data: draft})

	records, err := h.records.FetchRecords(ctx, draft.Scope())
	if err != nil {
		log.Printf("preview: fetch records: %v", err)
		h.sendError(ctx, conn, requestID, "fetch_error", "could not load records")
		return
	}
	res, err := h.engine.Materialize(records, draft)
	if err != nil {
		h.sendError(ctx, conn, requestID, "invalid_view", err.Error())
		return
	}

	h.send(ctx, conn, ServerMessage{
		Type:      "meta",
		RequestID: requestID,
		Data: MetaData{
			Total:  res.Total,
			Keys:   res.Groups.Keys(),
			Labels: res.Groups.Labels(),
		},
	})
	for _, b := range res.Groups.Buckets() {
		data := BucketData{Key: b.Key, Label: b.Label, Count: len(b.Records), Records: b.Records}
		if h.recordLimit > 0 && len(b.Records) > h.recordLimit {
			data.Records = b.Records[:h.recordLimit]
			data.Truncated = true
		}
		h.send(ctx, conn, ServerMessage{Type: "bucket", RequestID: requestID, Data: data})
	}
	h.send(ctx, conn, ServerMessage{
		Type:      "done",
		RequestID: requestID,
		Data: DoneData{
			Total:   res.Total,
			Elapsed: time.Since(start).String(),
		},
	})
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("preview: write error: %v", err)
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
