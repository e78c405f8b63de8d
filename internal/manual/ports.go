// Package manual declares the store contracts shared by every manual-data
// backend. Implementations live in file, memory and storage.
package manual

import (
	"context"

	"finboard/internal/core"
)

// Ports for manual-data backends.
type (
	// Lifecycle is implemented by every store. Init is idempotent and must
	// complete before other calls; Close releases held resources.
	Lifecycle interface {
		Init(ctx context.Context) error
		Close() error
	}

	// RentRollStore keeps one rent-roll value per account.
	RentRollStore interface {
		Lifecycle
		Get(ctx context.Context, accountID, currency string) (core.RentRoll, error)
		// Set stores amount rounded to cents. Non-finite or negative amounts
		// fail with a validation error and leave stored state untouched.
		Set(ctx context.Context, accountID string, amount float64, currency string) (core.RentRoll, error)
		Clear(ctx context.Context, accountID, currency string) (core.RentRoll, error)
	}

	// FieldStore keeps typed property, HELOC and mortgage fields.
	FieldStore interface {
		Lifecycle
		GetField(ctx context.Context, ref core.FieldRef) (core.FieldValue, error)
		SetField(ctx context.Context, ref core.FieldRef, value any, updatedBy string) (core.FieldValue, error)
	}

	// SlugStore keeps the named liabilities and the single named asset.
	SlugStore interface {
		Lifecycle
		Liabilities(ctx context.Context) (core.Liabilities, error)
		Asset(ctx context.Context) (core.Asset, error)
		// UpdateLiability applies a partial update and returns every liability.
		UpdateLiability(ctx context.Context, slug string, fields map[string]any, updatedBy string) (core.Liabilities, error)
		UpdateAsset(ctx context.Context, value any, updatedBy string) (core.Asset, error)
	}

	// Pinger reports backend connectivity for health checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// SchemaMigrator runs one-off schema changes on the rent-roll table.
	SchemaMigrator interface {
		DropRentRollAccountFK(ctx context.Context) ([]core.MigrationStep, error)
	}
)
