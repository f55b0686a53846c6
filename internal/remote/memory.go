package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plumeblog/plume/internal/apperr"
)

// maxTxRetries bounds optimistic transaction retries before giving up.
const maxTxRetries = 16

type memDoc struct {
	fields  Document
	version uint64
}

// Memory is an embedded, multi-writer-safe implementation of Store. It
// serializes commits under a single mutex and fans snapshots out to
// subscribers through per-subscriber coalescing channels.
type Memory struct {
	mu     sync.Mutex
	colls  map[string]map[string]*memDoc
	subs   map[*Subscription]struct{}
	seq    uint64
	closed bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string]map[string]*memDoc),
		subs:  make(map[*Subscription]struct{}),
	}
}

func (m *Memory) coll(name string) map[string]*memDoc {
	c, ok := m.colls[name]
	if !ok {
		c = make(map[string]*memDoc)
		m.colls[name] = c
	}
	return c
}

// Subscribe opens a change feed and delivers the current state immediately.
func (m *Memory) Subscribe(_ context.Context, collection, orderBy string, desc bool) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, apperr.ErrClosed
	}
	sub := &Subscription{
		collection: collection,
		orderBy:    orderBy,
		desc:       desc,
		ch:         make(chan Snapshot, 1),
	}
	sub.unsubscribe = func(s *Subscription) {
		m.mu.Lock()
		delete(m.subs, s)
		m.mu.Unlock()
	}
	m.subs[sub] = struct{}{}
	m.seq++
	sub.deliver(m.snapshotLocked(sub, m.seq))
	return sub, nil
}

// Add inserts a document under a fresh store-assigned id.
func (m *Memory) Add(_ context.Context, collection string, fields Document) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", apperr.ErrClosed
	}
	m.coll(collection)[id] = &memDoc{fields: copyDoc(fields), version: 1}
	m.commitLocked(collection)
	return id, nil
}

// Put creates or replaces a document under the given id.
func (m *Memory) Put(_ context.Context, collection, id string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperr.ErrClosed
	}
	c := m.coll(collection)
	version := uint64(1)
	if existing, ok := c[id]; ok {
		version = existing.version + 1
	}
	c[id] = &memDoc{fields: copyDoc(fields), version: version}
	m.commitLocked(collection)
	return nil
}

// Update merges fields into an existing document.
func (m *Memory) Update(_ context.Context, collection, id string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperr.ErrClosed
	}
	d, ok := m.coll(collection)[id]
	if !ok {
		return fmt.Errorf("remote: update %s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	mergeDoc(d.fields, fields)
	d.version++
	m.commitLocked(collection)
	return nil
}

// Delete removes a document. Deleting an absent document is a no-op, which
// keeps concurrent double-deletes harmless.
func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperr.ErrClosed
	}
	c := m.coll(collection)
	if _, ok := c[id]; !ok {
		return nil
	}
	delete(c, id)
	m.commitLocked(collection)
	return nil
}

// memTx implements Tx over copies taken at transaction start.
type memTx struct {
	reads  map[string]Document
	writes map[string]Document
}

func (t *memTx) Get(id string) (Document, error) {
	d, ok := t.reads[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return d, nil
}

func (t *memTx) Update(id string, fields Document) {
	t.writes[id] = copyDoc(fields)
}

// RunTransaction executes fn optimistically: reads are copied out with their
// versions, fn runs without the store lock, and the commit verifies that no
// read document changed in the meantime. On conflict the whole transaction
// is retried from a fresh read.
func (m *Memory) RunTransaction(ctx context.Context, collection string, ids []string, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return apperr.ErrClosed
		}
		c := m.coll(collection)
		reads := make(map[string]Document, len(ids))
		versions := make(map[string]uint64, len(ids))
		absent := make(map[string]struct{})
		for _, id := range ids {
			if d, ok := c[id]; ok {
				reads[id] = copyDoc(d.fields)
				versions[id] = d.version
			} else {
				absent[id] = struct{}{}
			}
		}
		m.mu.Unlock()

		tx := &memTx{reads: reads, writes: make(map[string]Document)}
		if err := fn(tx); err != nil {
			return err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return apperr.ErrClosed
		}
		conflict := false
		for id, version := range versions {
			d, ok := c[id]
			if !ok || d.version != version {
				conflict = true
				break
			}
		}
		// A document that was absent at read time but exists now is a
		// conflict too, so a create decided inside fn never clobbers a
		// concurrent writer.
		for id := range absent {
			if _, appeared := c[id]; appeared {
				conflict = true
			}
		}
		if conflict {
			m.mu.Unlock()
			continue
		}
		for id, fields := range tx.writes {
			if d, ok := c[id]; ok {
				mergeDoc(d.fields, fields)
				d.version++
			} else {
				c[id] = &memDoc{fields: copyDoc(fields), version: 1}
			}
		}
		if len(tx.writes) > 0 {
			m.commitLocked(collection)
		}
		m.mu.Unlock()
		return nil
	}
	return fmt.Errorf("remote: transaction on %s: retries exhausted", collection)
}

// BatchWrite applies every write under one commit. All subscribers observe
// either none or all of the batch.
func (m *Memory) BatchWrite(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperr.ErrClosed
	}
	touched := make(map[string]struct{})
	for _, w := range writes {
		c := m.coll(w.Collection)
		switch {
		case w.Delete:
			delete(c, w.ID)
		default:
			if d, ok := c[w.ID]; ok {
				mergeDoc(d.fields, w.Fields)
				d.version++
			} else {
				c[w.ID] = &memDoc{fields: copyDoc(w.Fields), version: 1}
			}
		}
		touched[w.Collection] = struct{}{}
	}
	for collection := range touched {
		m.commitLocked(collection)
	}
	return nil
}

// Close terminates all subscriptions with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for sub := range m.subs {
		sub.terminate(apperr.ErrClosed)
	}
	m.subs = make(map[*Subscription]struct{})
	return nil
}

// commitLocked bumps the sequence and re-delivers the affected collection to
// every subscriber on it. Caller holds m.mu.
func (m *Memory) commitLocked(collection string) {
	m.seq++
	for sub := range m.subs {
		if sub.collection != collection {
			continue
		}
		sub.deliver(m.snapshotLocked(sub, m.seq))
	}
}

// snapshotLocked materializes the subscriber's collection ordered by its
// sort key. Caller holds m.mu.
func (m *Memory) snapshotLocked(sub *Subscription, seq uint64) Snapshot {
	c := m.coll(sub.collection)
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		cmp := compareValues(c[ids[i]].fields[sub.orderBy], c[ids[j]].fields[sub.orderBy])
		if cmp == 0 {
			// Tie-break on id so ordering is total.
			cmp = compareStrings(ids[i], ids[j])
		}
		if sub.desc {
			return cmp > 0
		}
		return cmp < 0
	})
	docs := make([]Document, len(ids))
	for i, id := range ids {
		docs[i] = copyDoc(c[id].fields)
	}
	return Snapshot{Seq: seq, IDs: ids, Docs: docs}
}

func copyDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func mergeDoc(dst, src Document) {
	for k, v := range src {
		dst[k] = v
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareValues orders sort-key values of the types documents actually carry.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareStrings(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	// Incomparable or missing values sort as equal.
	return 0
}
