// Package storage persists the menu post history. The page cache and the
// auto-post schedule stay in memory only; this is an audit log, not state.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// PostRecord is one delivered menu. Keep it compact and schema-stable.
type PostRecord struct {
	At        time.Time
	Cantina   string
	MenuDate  string // ISO calendar date the delivered menu belongs to
	ChatID    int64
	Pages     int
	FromCache bool
	Source    string // "auto" or "manual"
}

type Store interface {
	AppendPost(ctx context.Context, r PostRecord) error
	RecentPosts(ctx context.Context, limit int) ([]PostRecord, error)
	PrunePosts(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}
