// Package memory keeps named liabilities and the manual asset in process
// memory. It backs the summary and slug routes when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"finboard/internal/core"
)

type Store struct {
	mu          sync.Mutex
	liabilities core.Liabilities
	asset       core.Asset
	now         func() time.Time
}

func New() *Store {
	return &Store{
		liabilities: core.Liabilities{},
		asset:       core.EmptyAsset(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Init(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Liabilities returns every known slug, with defaults for untouched ones.
func (s *Store) Liabilities(_ context.Context) (core.Liabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liabilities.Complete(), nil
}

// Asset returns the manual asset record.
func (s *Store) Asset(_ context.Context) (core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset, nil
}

// UpdateLiability validates the patch before taking the lock, so rejected
// updates leave every record untouched.
func (s *Store) UpdateLiability(ctx context.Context, slug string, fields map[string]any, updatedBy string) (core.Liabilities, error) {
	assignments, err := core.NormalizeLiabilityPatch(slug, fields)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return s.Liabilities(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.liabilities[slug]
	if !ok {
		rec = core.DefaultLiability(slug)
	}
	rec.Apply(assignments)
	now := s.now()
	rec.UpdatedAt = &now
	rec.UpdatedBy = optional(updatedBy)
	s.liabilities[slug] = rec
	return s.liabilities.Complete(), nil
}

// UpdateAsset sets the manual asset value.
func (s *Store) UpdateAsset(_ context.Context, value any, updatedBy string) (core.Asset, error) {
	v, err := core.NormalizeAssetValue(value)
	if err != nil {
		return core.Asset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.asset = core.Asset{
		Slug:      core.AssetSlug,
		ValueUSD:  v,
		UpdatedAt: &now,
		UpdatedBy: optional(updatedBy),
	}
	return s.asset, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
