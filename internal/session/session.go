package session

import (
	"context"
	"time"
)

// State identifies where a user is in the conversation.
type State string

const (
	// StateIdle means no conversation is in progress. A missing session is
	// equivalent to StateIdle.
	StateIdle State = "IDLE"
	// StateMenuSelect means the user is choosing an option from the menu
	// node named by Session.MenuID.
	StateMenuSelect State = "MENU_SELECT"
	// StateAwaitingName means the next input is a free-text search name.
	StateAwaitingName State = "AWAITING_NAME"
	// StateAwaitingID means the next input is a national identity number.
	StateAwaitingID State = "AWAITING_ID"
	// StateAwaitingPlate means the next input is a vehicle plate.
	StateAwaitingPlate State = "AWAITING_PLATE"
	// StateShowingResults is the transient state while a lookup runs.
	StateShowingResults State = "SHOWING_RESULTS"
)

// Session is the per-user conversational state tracked between messages.
type Session struct {
	UserID          string            `json:"user_id"`
	State           State             `json:"state"`
	MenuID          string            `json:"menu_id,omitempty"`
	LastInteraction time.Time         `json:"last_interaction"`
	Timeout         time.Duration     `json:"timeout"`
	Scratch         map[string]string `json:"scratch,omitempty"`
}

// Expired reports whether the session's idle timeout has elapsed at now.
// Sessions without a timeout never expire on their own.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.Timeout <= 0 {
		return false
	}
	return now.Sub(s.LastInteraction) > s.Timeout
}

// Store keeps one Session per user identity. Implementations must serialize
// mutation per key; turns for different users must not contend on a single lock.
type Store interface {
	// Get returns the session for userID, creating an idle one if absent.
	// The returned session is a copy; call Put to persist changes.
	Get(ctx context.Context, userID string) (*Session, error)
	// Put stores the session under its UserID.
	Put(ctx context.Context, s *Session) error
	// Clear removes the session for userID. Clearing an absent session is a no-op.
	Clear(ctx context.Context, userID string) error
	// Touch refreshes LastInteraction for an existing session.
	Touch(ctx context.Context, userID string) error
	// IsActive reports whether userID has a live non-idle session. Expired
	// sessions are cleared as a side effect and reported inactive.
	IsActive(ctx context.Context, userID string) (bool, error)
	// Sweep deletes expired sessions and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
