package api

import (
	"context"

	"kinescope/internal/catalog"
)

// CatalogReader abstracts catalog persistence interactions needed for API queries.
type CatalogReader interface {
	List(ctx context.Context, origins ...catalog.Origin) ([]*catalog.Entry, error)
	Stats(ctx context.Context) (map[catalog.Origin]int, error)
	GetByID(ctx context.Context, id int64) (*catalog.Entry, error)
}

// CatalogService exposes read-only catalog operations returning API DTOs.
type CatalogService struct {
	store CatalogReader
}

// NewCatalogService constructs a CatalogService around the provided reader.
func NewCatalogService(store CatalogReader) *CatalogService {
	if store == nil {
		return nil
	}
	return &CatalogService{store: store}
}

// List returns recordings filtered by origin.
func (s *CatalogService) List(ctx context.Context, origins ...catalog.Origin) ([]Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.List(ctx, origins...)
	if err != nil {
		return nil, err
	}
	return FromEntries(entries), nil
}

// Stats returns catalog summary counts keyed by origin string.
func (s *CatalogService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeOriginStats(stats), nil
}

// Describe fetches a single recording.
func (s *CatalogService) Describe(ctx context.Context, id int64) (*Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entry, err := s.store.GetByID(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	dto := FromEntry(entry)
	return &dto, nil
}
