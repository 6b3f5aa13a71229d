package edgestore

import (
	"context"
	"sync"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	edges     map[relation.Key]relation.Edge
	mu        sync.Mutex
	replaceMu sync.Mutex
	closed    bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{edges: make(map[relation.Key]relation.Edge)}
}

// DeleteByProvenance removes all edges tagged detectedVia.
func (m *Memory) DeleteByProvenance(_ context.Context, detectedVia string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	var n int
	for k, e := range m.edges {
		if e.DetectedVia == detectedVia {
			delete(m.edges, k)
			n++
		}
	}
	return n, nil
}

// InsertBatch inserts edges, counting existing pairs as conflicts.
func (m *Memory) InsertBatch(_ context.Context, edges []relation.Edge) (BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return BatchResult{}, ErrClosed
	}

	var res BatchResult
	for _, e := range edges {
		if _, exists := m.edges[e.Key()]; exists {
			res.Conflicts++
			continue
		}
		m.edges[e.Key()] = e
		res.Inserted++
	}
	return res, nil
}

// Edges returns all stored edges ordered by (organization_id, contact_id).
func (m *Memory) Edges(context.Context) ([]relation.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make([]relation.Edge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, e)
	}
	sortEdges(out)
	return out, nil
}

// Close releases the store. Further calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*Memory)(nil)

// ReplaceLock returns the lock Replace holds while swapping edge sets in this store.
func (m *Memory) ReplaceLock() *sync.Mutex { return &m.replaceMu }
