// Package docstore is the remote document store used by the remote auth
// backend for profile and scoped data documents.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collections written by the remote backend
const (
	CollectionUsers      = "users"
	CollectionPortfolios = "portfolios"
)

// Document is a JSON object
type Document map[string]any

// Store reads and writes documents addressed by collection and id
type Store interface {
	// ReadDocument returns ok=false when the document does not exist
	ReadDocument(ctx context.Context, collection, id string) (doc Document, ok bool, err error)

	// WriteDocument replaces the document, or with merge set, overlays its
	// top-level keys onto the stored document.
	WriteDocument(ctx context.Context, collection, id string, doc Document, merge bool) error
}

// Merge overlays the top-level keys of patch onto base. Nested objects are
// replaced, not merged. base may be nil.
func Merge(base, patch Document) Document {
	out := make(Document, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone deep-copies doc through its JSON form so callers never share
// nested maps with a store.
func Clone(doc Document) (Document, error) {
	if doc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	return out, nil
}

// Decode converts doc into v via its JSON form
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Encode converts v, which must marshal to a JSON object, into a Document
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}
