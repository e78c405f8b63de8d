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

// RentRollStore keeps rent-roll values in the manual_data table.
type RentRollStore struct {
	db  *DB
	now func() time.Time
}

func NewRentRollStore(db *DB) *RentRollStore {
	return &RentRollStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *RentRollStore) Init(ctx context.Context) error {
	return s.db.Init(ctx)
}

// Close is a no-op: the shared DB is closed by its owner.
func (s *RentRollStore) Close() error {
	return nil
}

func (s *RentRollStore) Get(ctx context.Context, accountID, currency string) (core.RentRoll, error) {
	row, err := s.db.queries.GetRentRoll(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.EmptyRentRoll(accountID, currency), nil
	}
	if err != nil {
		return core.RentRoll{}, fmt.Errorf("get rent roll: %w", err)
	}
	return rentRollFromRow(accountID, currency, row), nil
}

func (s *RentRollStore) Set(ctx context.Context, accountID string, amount float64, currency string) (core.RentRoll, error) {
	rounded, err := core.RoundCurrency("rent_roll", amount)
	if err != nil {
		return core.RentRoll{}, err
	}
	return s.upsert(ctx, accountID, sql.NullFloat64{Float64: rounded, Valid: true}, currency)
}

// Clear keeps the row and nulls its value.
func (s *RentRollStore) Clear(ctx context.Context, accountID, currency string) (core.RentRoll, error) {
	return s.upsert(ctx, accountID, sql.NullFloat64{}, currency)
}

func (s *RentRollStore) upsert(ctx context.Context, accountID string, value sql.NullFloat64, currency string) (core.RentRoll, error) {
	row, err := s.db.queries.UpsertRentRoll(ctx, UpsertRentRollParams{
		AccountID: accountID,
		RentRoll:  value,
		UpdatedAt: s.now(),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.RentRoll{}, fmt.Errorf("upsert rent roll for %s: %w", accountID, core.ErrFKViolation)
		}
		return core.RentRoll{}, fmt.Errorf("upsert rent roll: %w", err)
	}

	slog.InfoContext(ctx, "Rent roll saved",
		"account_id", accountID,
		"cleared", !value.Valid)

	return rentRollFromRow(accountID, currency, row), nil
}

func rentRollFromRow(accountID, currency string, row RentRollRow) core.RentRoll {
	out := core.EmptyRentRoll(accountID, currency)
	if row.RentRoll.Valid {
		v := row.RentRoll.Float64
		out.RentRoll = &v
	}
	out.UpdatedAt = row.UpdatedAt.Ptr()
	return out
}
