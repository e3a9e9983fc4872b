package storage

import (
	"context"

	"github.com/telerag/telerag/core"
)

// AccountRepository is the subscription registry: a durable store of users
// and channels with reference counts. It decides when a channel subscription
// must be released; the caller is responsible for unsubscribing the content
// source from the channel ids it returns.
//
// Implementations must serialize concurrent mutations of the same channel's
// subscriber count (per-channel lock or optimistic retry) so the refcount
// invariant stays exact: a channel record exists iff its count is > 0.
type AccountRepository interface {
	// CreateUser creates a user with an empty channel set.
	// Returns ErrAlreadyExists if a user with the id exists.
	CreateUser(ctx context.Context, id int64, name string) error

	// DeleteUser removes the user record, releasing one reference for every
	// channel the user references. Returns the ids of channels whose
	// reference count dropped to zero (their records are already deleted).
	// Returns ErrNotFound if the user is absent.
	DeleteUser(ctx context.Context, id int64) ([]int64, error)

	// UpdateUserChannels applies set semantics: references are acquired for
	// add minus current and released for remove intersected with current;
	// the user's set becomes (current union add) minus remove. Every id in
	// add must already exist as a known channel. Returns the ids of channels
	// that reached zero references.
	// Returns ErrNotFound if the user or an added channel is absent.
	UpdateUserChannels(ctx context.Context, id int64, add, remove []int64) ([]int64, error)

	// GetUser retrieves a user by id.
	// Returns ErrNotFound if the user is absent.
	GetUser(ctx context.Context, id int64) (*core.User, error)

	// CreateChannel registers a channel record with a zero subscriber count.
	// Returns ErrAlreadyExists if a channel with the id exists.
	CreateChannel(ctx context.Context, id int64, title string) error

	// DeleteChannel removes a channel record.
	// Returns ErrNotFound if absent and ErrChannelInUse if the subscriber
	// count is above zero.
	DeleteChannel(ctx context.Context, id int64) error

	// GetChannel retrieves a channel by id.
	// Returns ErrNotFound if the channel is absent.
	GetChannel(ctx context.Context, id int64) (*core.Channel, error)

	// ListChannels returns every registered channel, ordered by id.
	ListChannels(ctx context.Context) ([]*core.Channel, error)

	// Close closes the repository and releases resources.
	Close() error
}

// Match is a single similarity query hit.
type Match struct {
	Chunk *core.Chunk
	Score float32
}

// VectorStore provides named-collection storage of embedded chunks with
// similarity queries. Collections are cheap to create and delete; the
// pipeline uses short-lived per-user collections and long-lived per-channel
// collections.
type VectorStore interface {
	// GetOrCreateCollection ensures the named collection exists.
	GetOrCreateCollection(ctx context.Context, name string) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// DeleteCollection removes the collection and all its documents.
	// Deleting an absent collection is a no-op.
	DeleteCollection(ctx context.Context, name string) error

	// Add upserts chunks into the collection, keyed by their content-derived
	// IDs. Re-adding a chunk with identical text overwrites the previous
	// document rather than storing a duplicate.
	Add(ctx context.Context, collection string, chunks []*core.Chunk) error

	// Query returns up to topN chunks ranked by cosine similarity to the
	// given vector, highest first.
	// Returns ErrCollectionNotFound if the collection does not exist.
	Query(ctx context.Context, collection string, vector []float32, topN int) ([]Match, error)

	// Close closes the store and releases resources.
	Close() error
}
