// Package parking captures off-topic thoughts into a durable side channel
// so the current focus block is never interrupted by them.
package parking

import (
	"context"
	"time"
)

// Entry is one parked thought.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves parked entries.
type Store interface {
	Save(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Close() error
}
