package remote

import (
	"context"

	"github.com/jrsteele09/go-portfolio-auth/docstore"
)

// gatedStore holds every document call until the backend is ready
type gatedStore struct {
	b *Backend
}

var _ docstore.Store = gatedStore{}

// Documents returns the document store behind the readiness gate. Anything
// else reading or writing remote documents, such as the user data scope,
// goes through it so calls made before Start queue instead of running.
func (b *Backend) Documents() docstore.Store {
	return gatedStore{b: b}
}

func (g gatedStore) ReadDocument(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	if err := g.b.awaitReady(ctx); err != nil {
		return nil, false, err
	}
	return g.b.docs.ReadDocument(ctx, collection, id)
}

func (g gatedStore) WriteDocument(ctx context.Context, collection, id string, doc docstore.Document, merge bool) error {
	if err := g.b.awaitReady(ctx); err != nil {
		return err
	}
	return g.b.docs.WriteDocument(ctx, collection, id, doc, merge)
}
