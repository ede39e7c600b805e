// Package catalog keeps a short-lived index of downloaded artifacts so a
// retrieval without an explicit filename can still be served under the
// video's title.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no entry exists for an id
var ErrNotFound = errors.New("catalog entry not found")

// Entry describes one downloaded artifact
type Entry struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Title       string    `json:"title"`
	DisplayName string    `json:"display_name"`
	SourceURL   string    `json:"source_url"`
	Format      string    `json:"format"`
	CreatedAt   time.Time `json:"created_at"`
}

// Catalog stores artifact entries
type Catalog interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	Forget(ctx context.Context, id string) error
	Close() error
}

// Noop implements Catalog without storing anything
type Noop struct{}

func (Noop) Put(context.Context, Entry) error { return nil }
func (Noop) Get(context.Context, string) (Entry, error) {
	return Entry{}, ErrNotFound
}
func (Noop) Forget(context.Context, string) error { return nil }
func (Noop) Close() error                         { return nil }
