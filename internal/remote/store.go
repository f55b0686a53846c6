// Package remote defines the contract of the real-time document store that
// Plume synchronizes against, plus an embedded in-memory implementation.
//
// The store is consumed as an opaque service: schemaless documents, ordered
// full-snapshot subscriptions, atomic read-modify-write transactions, and
// all-or-nothing batched writes. Plume never assumes anything about its
// storage engine beyond this interface.
package remote

import "context"

// Document is a schemaless map of field name to scalar, time, or array value.
type Document map[string]any

// Snapshot is a complete, ordered materialization of one collection at a
// point in time. It is not a diff: every change re-delivers the entire
// result set. Seq increases monotonically per store.
type Snapshot struct {
	Seq uint64
	IDs []string
	Docs []Document
}

// Write is one entry of a batched write. When Delete is set the document is
// removed; otherwise Fields is merged into the document, creating it if
// absent.
type Write struct {
	Collection string
	ID         string
	Fields     Document
	Delete     bool
}

// Tx is the handle passed to a transaction function. Reads observe the
// state at transaction start; updates are buffered and applied atomically
// at commit, or retried from scratch when a read document changed underneath.
type Tx interface {
	// Get returns the current fields of id, or apperr.ErrNotFound.
	Get(id string) (Document, error)
	// Update merges fields into id at commit time, creating the document
	// when it does not exist yet.
	Update(id string, fields Document)
}

// Store is the remote real-time document store contract.
type Store interface {
	// Subscribe opens a change feed over collection ordered by the given
	// field. The subscription delivers an initial snapshot immediately and
	// a fresh one after every committed change.
	Subscribe(ctx context.Context, collection, orderBy string, desc bool) (*Subscription, error)
	// Add inserts a new document with a store-assigned id.
	Add(ctx context.Context, collection string, fields Document) (string, error)
	// Put creates or replaces a document under a caller-chosen id.
	Put(ctx context.Context, collection, id string, fields Document) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error
	// RunTransaction runs fn with a read-modify-write handle over the given
	// ids and commits atomically, retrying automatically on conflict.
	RunTransaction(ctx context.Context, collection string, ids []string, fn func(tx Tx) error) error
	// BatchWrite applies all writes as a single all-or-nothing commit.
	BatchWrite(ctx context.Context, writes []Write) error
	// Close releases the store; open subscriptions terminate with ErrClosed.
	Close() error
}
