package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"finboard/internal/core"
)

var domainTables = map[core.Domain]string{
	core.DomainProperty: "manual_property",
	core.DomainHELOC:    "manual_heloc",
	core.DomainMortgage: "manual_mortgage",
}

// FieldStore keeps typed property, HELOC and mortgage fields, one row per
// account (and unit, for property).
type FieldStore struct {
	db  *DB
	now func() time.Time
}

func NewFieldStore(db *DB) *FieldStore {
	return &FieldStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *FieldStore) Init(ctx context.Context) error {
	return s.db.Init(ctx)
}

// Close is a no-op: the shared DB is closed by its owner.
func (s *FieldStore) Close() error {
	return nil
}

// GetField projects one field of the domain row. A missing row yields the
// all-null value.
func (s *FieldStore) GetField(ctx context.Context, ref core.FieldRef) (core.FieldValue, error) {
	spec, err := ref.Validate()
	if err != nil {
		return core.FieldValue{}, err
	}

	row, err := s.db.queries.GetFieldColumn(ctx, domainTables[ref.Domain], spec.Column, rowKeys(ref))
	if errors.Is(err, sql.ErrNoRows) {
		return core.EmptyFieldValue(ref), nil
	}
	if err != nil {
		return core.FieldValue{}, fmt.Errorf("get %s: %w", ref.Key(), err)
	}
	return fieldValueFromRow(ref, spec, row)
}

// SetField normalizes value and upserts the domain row.
func (s *FieldStore) SetField(ctx context.Context, ref core.FieldRef, value any, updatedBy string) (core.FieldValue, error) {
	spec, err := ref.Validate()
	if err != nil {
		return core.FieldValue{}, err
	}
	normalized, err := spec.Normalize(value)
	if err != nil {
		return core.FieldValue{}, err
	}

	keyCols := []string{"account_id"}
	if ref.Domain == core.DomainProperty {
		keyCols = append(keyCols, "unit")
	}
	row, err := s.db.queries.UpsertFieldColumn(ctx, UpsertFieldParams{
		Table:     domainTables[ref.Domain],
		Column:    spec.Column,
		KeyCols:   keyCols,
		Keys:      rowKeys(ref),
		Value:     normalized,
		UpdatedAt: s.now(),
		UpdatedBy: nullString(updatedBy),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.FieldValue{}, fmt.Errorf("set %s: %w", ref.Key(), core.ErrFKViolation)
		}
		return core.FieldValue{}, fmt.Errorf("set %s: %w", ref.Key(), err)
	}

	slog.InfoContext(ctx, "Manual field saved",
		"account_id", ref.AccountID,
		"key", ref.Key())

	return fieldValueFromRow(ref, spec, row)
}

func rowKeys(ref core.FieldRef) []any {
	if ref.Domain == core.DomainProperty {
		return []any{ref.AccountID, ref.Unit}
	}
	return []any{ref.AccountID}
}

func fieldValueFromRow(ref core.FieldRef, spec core.FieldSpec, row FieldRow) (core.FieldValue, error) {
	value, err := columnValue(spec.Kind, row.Value)
	if err != nil {
		return core.FieldValue{}, fmt.Errorf("decode %s: %w", ref.Key(), err)
	}
	out := core.EmptyFieldValue(ref)
	out.Value = value
	out.UpdatedAt = row.UpdatedAt.Ptr()
	if row.UpdatedBy.Valid {
		by := row.UpdatedBy.String
		out.UpdatedBy = &by
	}
	return out, nil
}

// columnValue converts a raw driver value into the field's Go type. NUMERIC
// arrives as text from PostgreSQL and as a number from SQLite.
func columnValue(kind core.FieldKind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case core.KindCurrency, core.KindPercent:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		}
	case core.KindInteger:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		case []byte:
			return strconv.ParseInt(string(v), 10, 64)
		}
	case core.KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	}
	return nil, fmt.Errorf("unexpected column type %T", raw)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
