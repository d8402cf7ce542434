// ABOUTME: History store interface and data types for secureagent-server persistence
// ABOUTME: Defines the Exchange record and the per-user conversation history operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidExchange is returned when an exchange is missing its owner.
var ErrInvalidExchange = errors.New("exchange requires a username")

// Exchange is one query and the agent's response, owned by a user.
type Exchange struct {
	ID        string
	Username  string
	Query     string
	Response  string
	CreatedAt time.Time
}

// HistoryStore persists per-user conversation history.
type HistoryStore interface {
	// AppendExchange stores e. Empty ID and zero CreatedAt are filled in.
	AppendExchange(ctx context.Context, e *Exchange) error

	// ListExchanges returns a user's exchanges oldest first, limited to the
	// most recent limit entries. limit <= 0 returns everything.
	ListExchanges(ctx context.Context, username string, limit int) ([]*Exchange, error)

	// ClearExchanges removes a user's history and reports how many entries went.
	ClearExchanges(ctx context.Context, username string) (int64, error)

	Close() error
}
