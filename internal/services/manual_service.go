package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/manual"
	"finboard/internal/manual/memory"
)

// BalanceSource yields the cached balance entry of every known account.
type BalanceSource interface {
	BalanceEntries() []json.RawMessage
}

// ManualDeps wires ManualService. Only Slugs falls back to a default
// (an in-memory store); missing relational stores make their operations
// unavailable.
type ManualDeps struct {
	RentRoll  manual.RentRollStore
	Fields    manual.FieldStore
	Slugs     manual.SlugStore
	Balances  BalanceSource
	Publisher amqp.Publisher
	Pinger    manual.Pinger
	Migrator  manual.SchemaMigrator
}

// ManualService orchestrates manual-data stores and announces every
// successful write on the event publisher.
type ManualService struct {
	rentRoll  manual.RentRollStore
	fields    manual.FieldStore
	slugs     manual.SlugStore
	balances  BalanceSource
	publisher amqp.Publisher
	pinger    manual.Pinger
	migrator  manual.SchemaMigrator
}

func NewManualService(deps ManualDeps) *ManualService {
	s := &ManualService{
		rentRoll:  deps.RentRoll,
		fields:    deps.Fields,
		slugs:     deps.Slugs,
		balances:  deps.Balances,
		publisher: deps.Publisher,
		pinger:    deps.Pinger,
		migrator:  deps.Migrator,
	}
	if s.slugs == nil {
		s.slugs = memory.New()
	}
	if s.publisher == nil {
		s.publisher = amqp.NoopPublisher{}
	}
	return s
}

// Init prepares every configured store concurrently.
func (s *ManualService) Init(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, store := range s.lifecycles() {
		g.Go(func() error {
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("init %s store: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *ManualService) lifecycles() map[string]manual.Lifecycle {
	out := map[string]manual.Lifecycle{"slug": s.slugs}
	if s.rentRoll != nil {
		out["rent_roll"] = s.rentRoll
	}
	if s.fields != nil {
		out["field"] = s.fields
	}
	return out
}

// HasRentRollStore reports whether rent-roll writes can be served.
func (s *ManualService) HasRentRollStore() bool { return s.rentRoll != nil }

// HasFieldStore reports whether field writes can be served.
func (s *ManualService) HasFieldStore() bool { return s.fields != nil }

// RentRoll returns the stored rent roll, or an empty record when no store
// is configured.
func (s *ManualService) RentRoll(ctx context.Context, accountID, currency string) (core.RentRoll, error) {
	if s.rentRoll == nil {
		return core.EmptyRentRoll(accountID, currency), nil
	}
	return s.rentRoll.Get(ctx, accountID, currency)
}

func (s *ManualService) SetRentRoll(ctx context.Context, accountID string, amount float64, currency string) (core.RentRoll, error) {
	if s.rentRoll == nil {
		return core.RentRoll{}, fmt.Errorf("rent roll: %w", core.ErrStoreUnavailable)
	}
	rec, err := s.rentRoll.Set(ctx, accountID, amount, currency)
	if err != nil {
		return core.RentRoll{}, err
	}
	change := amqp.NewManualChange(amqp.ScopeRentRoll)
	change.AccountID = accountID
	s.publish(ctx, change)
	return rec, nil
}

func (s *ManualService) ClearRentRoll(ctx context.Context, accountID, currency string) (core.RentRoll, error) {
	if s.rentRoll == nil {
		return core.RentRoll{}, fmt.Errorf("rent roll: %w", core.ErrStoreUnavailable)
	}
	rec, err := s.rentRoll.Clear(ctx, accountID, currency)
	if err != nil {
		return core.RentRoll{}, err
	}
	change := amqp.NewManualChange(amqp.ScopeRentRoll)
	change.AccountID = accountID
	change.Cleared = true
	s.publish(ctx, change)
	return rec, nil
}

// Field validates ref and returns its stored value. Without a field store
// the all-null projection is returned.
func (s *ManualService) Field(ctx context.Context, ref core.FieldRef) (core.FieldValue, error) {
	if _, err := ref.Validate(); err != nil {
		return core.FieldValue{}, err
	}
	if s.fields == nil {
		return core.EmptyFieldValue(ref), nil
	}
	return s.fields.GetField(ctx, ref)
}

func (s *ManualService) SetField(ctx context.Context, ref core.FieldRef, value any, updatedBy string) (core.FieldValue, error) {
	if s.fields == nil {
		return core.FieldValue{}, fmt.Errorf("fields: %w", core.ErrStoreUnavailable)
	}
	fv, err := s.fields.SetField(ctx, ref, value, updatedBy)
	if err != nil {
		return core.FieldValue{}, err
	}
	change := amqp.NewManualChange(amqp.ScopeField)
	change.AccountID = ref.AccountID
	change.Key = fv.Key
	change.UpdatedBy = updatedBy
	s.publish(ctx, change)
	return fv, nil
}

func (s *ManualService) Liabilities(ctx context.Context) (core.Liabilities, error) {
	return s.slugs.Liabilities(ctx)
}

func (s *ManualService) Asset(ctx context.Context) (core.Asset, error) {
	return s.slugs.Asset(ctx)
}

func (s *ManualService) UpdateLiability(ctx context.Context, slug string, fields map[string]any, updatedBy string) (core.Liabilities, error) {
	all, err := s.slugs.UpdateLiability(ctx, slug, fields, updatedBy)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		change := amqp.NewManualChange(amqp.ScopeLiability)
		change.Slug = slug
		change.UpdatedBy = updatedBy
		s.publish(ctx, change)
	}
	return all, nil
}

func (s *ManualService) UpdateAsset(ctx context.Context, value any, updatedBy string) (core.Asset, error) {
	asset, err := s.slugs.UpdateAsset(ctx, value, updatedBy)
	if err != nil {
		return core.Asset{}, err
	}
	change := amqp.NewManualChange(amqp.ScopeAsset)
	change.Slug = asset.Slug
	change.UpdatedBy = updatedBy
	s.publish(ctx, change)
	return asset, nil
}

// Summary combines the manual slug data with the cached account balances.
func (s *ManualService) Summary(ctx context.Context) (core.Summary, error) {
	var (
		liabilities core.Liabilities
		asset       core.Asset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		liabilities, err = s.slugs.Liabilities(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		asset, err = s.slugs.Asset(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("manual summary: %w", err)
	}

	var balances []json.RawMessage
	if s.balances != nil {
		balances = s.balances.BalanceEntries()
	}
	return core.ComputeSummary(liabilities, asset, balances), nil
}

// DropRentRollAccountFK runs the one-off foreign-key migration.
func (s *ManualService) DropRentRollAccountFK(ctx context.Context) ([]core.MigrationStep, error) {
	if s.migrator == nil {
		return nil, fmt.Errorf("schema migration: %w", core.ErrStoreUnavailable)
	}
	return s.migrator.DropRentRollAccountFK(ctx)
}

// CanMigrate reports whether a schema migrator is configured.
func (s *ManualService) CanMigrate() bool { return s.migrator != nil }

func (s *ManualService) publish(ctx context.Context, change *amqp.ManualChange) {
	if err := s.publisher.PublishManualChange(ctx, change); err != nil {
		// The write already succeeded; events are best effort.
		slog.WarnContext(ctx, "Failed to publish manual change",
			"scope", change.Scope,
			"account_id", change.AccountID,
			"slug", change.Slug,
			"error", err)
	}
}

// Close releases stores and the publisher.
func (s *ManualService) Close() error {
	var errs []error
	for name, store := range s.lifecycles() {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s store: %w", name, err))
		}
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close manual service: %w", errors.Join(errs...))
	}
	return nil
}
