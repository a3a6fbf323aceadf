package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"classpin/internal/queue"
)

// MessageType tags audit events on the queue.
const MessageType = "audit"

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink publishes audit events to the queue, fire-and-forget: a failed
// audit write never fails the operation being audited.
type Sink struct {
	q queue.Queue
}

// NewSink creates a sink over the given queue backend.
func NewSink(q queue.Queue) *Sink {
	return &Sink{q: q}
}

// Record publishes one event. Safe on a nil sink, and swallows every
// error besides logging it.
func (s *Sink) Record(ctx context.Context, actor, action, details string) {
	if s == nil || s.q == nil {
		return
	}
	evt := Event{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

// Store persists audit events in Postgres. Consumed by the worker, not
// the request path.
type Store struct {
	db *sql.DB
}

// NewStore creates a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertEvent writes one audit row.
func (s *Store) InsertEvent(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor, action, details, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.Actor, evt.Action, evt.Details, evt.Timestamp)
	return err
}
