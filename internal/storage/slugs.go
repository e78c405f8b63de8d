package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/core"
)

// SlugStore keeps the named liabilities and the manual asset value.
type SlugStore struct {
	db  *DB
	now func() time.Time
}

func NewSlugStore(db *DB) *SlugStore {
	return &SlugStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SlugStore) Init(ctx context.Context) error {
	return s.db.Init(ctx)
}

// Close is a no-op: the shared DB is closed by its owner.
func (s *SlugStore) Close() error {
	return nil
}

// Liabilities returns exactly the known slugs; rows for unknown slugs are
// ignored and missing ones are filled with defaults.
func (s *SlugStore) Liabilities(ctx context.Context) (core.Liabilities, error) {
	rows, err := s.db.queries.ListLiabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list liabilities: %w", err)
	}
	out := make(core.Liabilities, len(rows))
	for _, r := range rows {
		out[r.Slug] = core.Liability{
			LoanAmountUSD:         floatOrNil(r.LoanAmountUSD),
			InterestRatePct:       floatOrNil(r.InterestRatePct),
			MonthlyPaymentUSD:     floatOrNil(r.MonthlyPaymentUSD),
			OutstandingBalanceUSD: floatOrNil(r.OutstandingBalanceUSD),
			TermMonths:            intOrNil(r.TermMonths),
			UpdatedAt:             r.UpdatedAt.Ptr(),
			UpdatedBy:             stringOrNil(r.UpdatedBy),
		}
	}
	return out.Complete(), nil
}

func (s *SlugStore) Asset(ctx context.Context) (core.Asset, error) {
	row, err := s.db.queries.GetAsset(ctx, core.AssetSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return core.EmptyAsset(), nil
	}
	if err != nil {
		return core.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return core.Asset{
		Slug:      core.AssetSlug,
		ValueUSD:  floatOrNil(row.ValueUSD),
		UpdatedAt: row.UpdatedAt.Ptr(),
		UpdatedBy: stringOrNil(row.UpdatedBy),
	}, nil
}

// UpdateLiability upserts only the columns present in fields. An empty patch
// writes nothing and returns the current mapping.
func (s *SlugStore) UpdateLiability(ctx context.Context, slug string, fields map[string]any, updatedBy string) (core.Liabilities, error) {
	assignments, err := core.NormalizeLiabilityPatch(slug, fields)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return s.Liabilities(ctx)
	}

	params := UpsertLiabilityParams{
		Slug:      slug,
		UpdatedAt: s.now(),
		UpdatedBy: nullString(updatedBy),
	}
	for _, a := range assignments {
		params.Columns = append(params.Columns, a.Spec.Column)
		params.Values = append(params.Values, a.Value)
	}
	if err := s.db.queries.UpsertLiability(ctx, params); err != nil {
		return nil, fmt.Errorf("update liability %s: %w", slug, err)
	}

	slog.InfoContext(ctx, "Liability updated",
		"slug", slug,
		"columns", params.Columns)

	return s.Liabilities(ctx)
}

func (s *SlugStore) UpdateAsset(ctx context.Context, value any, updatedBy string) (core.Asset, error) {
	v, err := core.NormalizeAssetValue(value)
	if err != nil {
		return core.Asset{}, err
	}
	var amount sql.NullFloat64
	if v != nil {
		amount = sql.NullFloat64{Float64: *v, Valid: true}
	}
	if err := s.db.queries.UpsertAsset(ctx, UpsertAssetParams{
		Slug:      core.AssetSlug,
		ValueUSD:  amount,
		UpdatedAt: s.now(),
		UpdatedBy: nullString(updatedBy),
	}); err != nil {
		return core.Asset{}, fmt.Errorf("update asset: %w", err)
	}

	slog.InfoContext(ctx, "Manual asset updated", "slug", core.AssetSlug)
	return s.Asset(ctx)
}

func floatOrNil(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intOrNil(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func stringOrNil(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
