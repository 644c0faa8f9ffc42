package userdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-portfolio-auth/docstore"
	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
)

// Repo persists ScopedData by owner
type Repo interface {
	// Read returns ok=false when nothing is stored for owner
	Read(ctx context.Context, owner string) (data *ScopedData, ok bool, err error)
	Write(ctx context.Context, data *ScopedData) error
}

// KeyPrefix prefixes the owner's identity key in the local key/value area
const KeyPrefix = "tradingPortfolio_"

// KVRepo keeps each owner's data under tradingPortfolio_<owner>
type KVRepo struct {
	store kvstore.Store
}

var _ Repo = (*KVRepo)(nil)

func NewKVRepo(store kvstore.Store) *KVRepo {
	return &KVRepo{store: store}
}

// Read also accepts the older layout where the key held the bare portfolio
// array and settings lived on the credential record.
func (r *KVRepo) Read(ctx context.Context, owner string) (*ScopedData, bool, error) {
	raw, err := r.store.Get(ctx, KeyPrefix+owner)
	if apperrors.Is(err, kvstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("[KVRepo.Read] %s: %w", owner, err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var portfolio []Holding
		if err := json.Unmarshal(trimmed, &portfolio); err != nil {
			return nil, false, apperrors.Wrapf(apperrors.ErrMalformedStore, "[KVRepo.Read] %s: %v", owner, err)
		}
		return &ScopedData{Owner: owner, Portfolio: portfolio}, true, nil
	}

	var data ScopedData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, false, apperrors.Wrapf(apperrors.ErrMalformedStore, "[KVRepo.Read] %s: %v", owner, err)
	}
	data.Owner = owner
	return &data, true, nil
}

func (r *KVRepo) Write(ctx context.Context, data *ScopedData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("[KVRepo.Write] marshal: %w", err)
	}
	if err := r.store.Set(ctx, KeyPrefix+data.Owner, raw); err != nil {
		return fmt.Errorf("[KVRepo.Write] %s: %w", data.Owner, err)
	}
	return nil
}

// DocRepo keeps each owner's data in the portfolios/<uid> document
type DocRepo struct {
	docs docstore.Store
}

var _ Repo = (*DocRepo)(nil)

func NewDocRepo(docs docstore.Store) *DocRepo {
	return &DocRepo{docs: docs}
}

func (r *DocRepo) Read(ctx context.Context, owner string) (*ScopedData, bool, error) {
	doc, ok, err := r.docs.ReadDocument(ctx, docstore.CollectionPortfolios, owner)
	if err != nil {
		return nil, false, fmt.Errorf("[DocRepo.Read] %s: %w", owner, err)
	}
	if !ok {
		return nil, false, nil
	}

	var data ScopedData
	if err := docstore.Decode(doc, &data); err != nil {
		return nil, false, apperrors.Wrapf(apperrors.ErrMalformedStore, "[DocRepo.Read] %s: %v", owner, err)
	}
	data.Owner = owner
	return &data, true, nil
}

func (r *DocRepo) Write(ctx context.Context, data *ScopedData) error {
	doc, err := docstore.Encode(data)
	if err != nil {
		return fmt.Errorf("[DocRepo.Write] %w", err)
	}
	if err := r.docs.WriteDocument(ctx, docstore.CollectionPortfolios, data.Owner, doc, true); err != nil {
		return fmt.Errorf("[DocRepo.Write] %s: %w", data.Owner, err)
	}
	return nil
}
