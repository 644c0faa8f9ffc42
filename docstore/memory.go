package docstore

import (
	"context"
	"sync"
)

// Memory is an in-memory Store
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document

	// Writes counts successful WriteDocument calls
	Writes int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]Document)}
}

func (m *Memory) ReadDocument(ctx context.Context, collection, id string) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	doc, ok := m.docs[collection][id]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	out, err := Clone(doc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Memory) WriteDocument(ctx context.Context, collection, id string, doc Document, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := Clone(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Document)
	}
	if merge {
		in = Merge(m.docs[collection][id], in)
	}
	if in == nil {
		in = Document{}
	}
	m.docs[collection][id] = in
	m.Writes++
	return nil
}
