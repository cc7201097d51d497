package channel

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction labels which way a history record traveled.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Record is one message retained for the management API's history view.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a bounded in-memory ring of recent messages. Once the limit is
// reached the oldest records are dropped; nothing is persisted.
type History struct {
	mu      sync.Mutex
	limit   int
	records []Record
}

// NewHistory creates a history retaining at most limit records.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 500
	}
	return &History{limit: limit}
}

// Add appends a record, evicting the oldest when over the limit, and returns
// the assigned record id.
func (h *History) Add(userID, direction, msgType, body string, at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Type:      msgType,
		Body:      body,
		Timestamp: at,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
	return rec.ID
}

// List returns the retained records, newest first.
func (h *History) List() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	for i, rec := range h.records {
		out[len(h.records)-1-i] = rec
	}
	return out
}

// Len reports how many records are retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Clear drops all retained records and returns how many were removed.
func (h *History) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.records)
	h.records = nil
	return n
}
