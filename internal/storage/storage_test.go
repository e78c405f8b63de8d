package storage

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"finboard/internal/core"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Options{Dialect: DialectSQLite, DSN: filepath.Join(t.TempDir(), "manual.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDB_InitIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if err := RunMigrations(db.dialect, db.dsn); err != nil {
		t.Fatalf("re-running migrations error = %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Dialect: DialectPostgres}); err == nil {
		t.Fatal("expected error for empty postgres url")
	}
	if _, err := Open(ctx, Options{Dialect: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ssl  bool
		want string
	}{
		{"adds require", "postgres://u:p@db:5432/app", true, "postgres://u:p@db:5432/app?sslmode=require"},
		{"adds disable", "postgres://u:p@db:5432/app", false, "postgres://u:p@db:5432/app?sslmode=disable"},
		{"keeps explicit mode", "postgresql://db/app?sslmode=verify-full", true, "postgresql://db/app?sslmode=verify-full"},
		{"keyword form untouched", "host=db dbname=app", true, "host=db dbname=app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postgresDSN(tt.raw, tt.ssl); got != tt.want {
				t.Errorf("postgresDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRentRollStore(t *testing.T) {
	ctx := context.Background()
	store := NewRentRollStore(openTestDB(t))
	now := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	store.now = fixedClock(now)

	got, err := store.Get(ctx, "acc_1", "USD")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(core.EmptyRentRoll("acc_1", "USD"), got); diff != "" {
		t.Fatalf("missing row mismatch (-want +got):\n%s", diff)
	}

	saved, err := store.Set(ctx, "acc_1", 1234.567, "")
	if err != nil {
		t.Fatal(err)
	}
	if *saved.RentRoll != 1234.57 || !saved.UpdatedAt.Equal(now) {
		t.Fatalf("Set() = %+v", saved)
	}

	got, _ = store.Get(ctx, "acc_1", "")
	if got.RentRoll == nil || *got.RentRoll != 1234.57 {
		t.Fatalf("Get() rent_roll = %v", got.RentRoll)
	}

	for _, bad := range []float64{-5, math.NaN()} {
		if _, err := store.Set(ctx, "acc_1", bad, ""); !core.IsValidation(err) {
			t.Fatalf("Set(%v) error = %v", bad, err)
		}
	}
	got, _ = store.Get(ctx, "acc_1", "")
	if *got.RentRoll != 1234.57 {
		t.Fatal("rejected write changed stored value")
	}

	cleared, err := store.Clear(ctx, "acc_1", "")
	if err != nil {
		t.Fatal(err)
	}
	if cleared.RentRoll != nil || cleared.UpdatedAt == nil {
		t.Fatalf("Clear() = %+v, want null value with timestamp", cleared)
	}
	got, _ = store.Get(ctx, "acc_1", "")
	if got.RentRoll != nil {
		t.Fatalf("Get() after Clear = %+v", got)
	}
}

func TestRentRollStore_ForeignKeyViolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.sql.ExecContext(ctx, `
		DROP TABLE manual_data;
		CREATE TABLE accounts (id TEXT PRIMARY KEY);
		INSERT INTO accounts (id) VALUES ('acc_known');
		CREATE TABLE manual_data (
			account_id TEXT PRIMARY KEY REFERENCES accounts(id),
			rent_roll NUMERIC NULL,
			updated_at TIMESTAMP NOT NULL
		);`)
	if err != nil {
		t.Fatalf("prepare fk schema: %v", err)
	}
	store := NewRentRollStore(db)

	if _, err := store.Set(ctx, "acc_known", 10, ""); err != nil {
		t.Fatalf("Set() on known account error = %v", err)
	}
	_, err = store.Set(ctx, "acc_missing", 10, "")
	if !errors.Is(err, core.ErrFKViolation) {
		t.Fatalf("Set() error = %v, want ErrFKViolation", err)
	}
	if _, err := store.Clear(ctx, "acc_missing", ""); !errors.Is(err, core.ErrFKViolation) {
		t.Fatalf("Clear() error = %v, want ErrFKViolation", err)
	}
}

func TestFieldStore(t *testing.T) {
	ctx := context.Background()
	store := NewFieldStore(openTestDB(t))
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	store.now = fixedClock(now)

	heloc := core.FieldRef{AccountID: "acc_1", Domain: core.DomainHELOC, Field: "interest_rate_pct"}

	t.Run("missing row", func(t *testing.T) {
		got, err := store.GetField(ctx, heloc)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(core.EmptyFieldValue(heloc), got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("percent of 100 accepted", func(t *testing.T) {
		got, err := store.SetField(ctx, heloc, json.Number("100"), "alice")
		if err != nil {
			t.Fatal(err)
		}
		if got.Value != 100.0 || got.Key != "heloc.interest_rate_pct" || *got.UpdatedBy != "alice" {
			t.Fatalf("SetField() = %+v", got)
		}
	})

	t.Run("other fields of the row untouched", func(t *testing.T) {
		term := core.FieldRef{AccountID: "acc_1", Domain: core.DomainHELOC, Field: "term_months"}
		if _, err := store.SetField(ctx, term, json.Number("120"), ""); err != nil {
			t.Fatal(err)
		}
		got, err := store.GetField(ctx, heloc)
		if err != nil {
			t.Fatal(err)
		}
		if got.Value != 100.0 {
			t.Fatalf("interest rate = %v, want 100", got.Value)
		}
		got, _ = store.GetField(ctx, term)
		if got.Value != int64(120) || got.UpdatedBy != nil {
			t.Fatalf("term = %+v", got)
		}
	})

	t.Run("property per unit", func(t *testing.T) {
		unitA := core.FieldRef{AccountID: "acc_1", Domain: core.DomainProperty, Unit: "A", Field: "tenant_name"}
		unitB := unitA
		unitB.Unit = "B"
		if _, err := store.SetField(ctx, unitA, "  Jane  ", ""); err != nil {
			t.Fatal(err)
		}
		got, _ := store.GetField(ctx, unitA)
		if got.Value != "Jane" || got.Key != "property.A.tenant_name" {
			t.Fatalf("unit A = %+v", got)
		}
		got, _ = store.GetField(ctx, unitB)
		if got.Value != nil || got.UpdatedAt != nil {
			t.Fatalf("unit B = %+v", got)
		}
	})

	t.Run("rent amount rounding and clearing", func(t *testing.T) {
		ref := core.FieldRef{AccountID: "acc_1", Domain: core.DomainProperty, Unit: "A", Field: "rent_amount"}
		got, err := store.SetField(ctx, ref, "1850.555", "")
		if err != nil {
			t.Fatal(err)
		}
		if got.Value != 1850.56 {
			t.Fatalf("rent_amount = %v", got.Value)
		}
		got, err = store.SetField(ctx, ref, nil, "")
		if err != nil || got.Value != nil {
			t.Fatalf("clear = %+v, %v", got, err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		day := core.FieldRef{AccountID: "acc_1", Domain: core.DomainMortgage, Field: "payment_day"}
		if _, err := store.SetField(ctx, day, json.Number("29"), ""); !core.IsValidation(err) {
			t.Fatalf("payment_day 29 error = %v", err)
		}
		unknown := core.FieldRef{AccountID: "acc_1", Domain: core.DomainMortgage, Field: "escrow"}
		if _, err := store.SetField(ctx, unknown, 1.0, ""); !errors.Is(err, core.ErrUnknownField) {
			t.Fatalf("unknown field error = %v", err)
		}
		if _, err := store.GetField(ctx, unknown); !errors.Is(err, core.ErrUnknownField) {
			t.Fatalf("unknown field read error = %v", err)
		}
		got, _ := store.GetField(ctx, day)
		if got.Value != nil {
			t.Fatalf("rejected write persisted: %+v", got)
		}
	})
}

func TestSlugStore_Liabilities(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSlugStore(db)

	got, err := store.Liabilities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || *got[core.SlugRoofLoan].TermMonths != 120 || *got[core.SlugOriginalMortgage].TermMonths != 360 {
		t.Fatalf("seeded liabilities = %+v", got)
	}

	if _, err := db.sql.ExecContext(ctx, `DELETE FROM manual_liability`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.sql.ExecContext(ctx, `INSERT INTO manual_liability (slug) VALUES ('legacy_loan')`); err != nil {
		t.Fatal(err)
	}
	got, err = store.Liabilities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(core.Liabilities{}.Complete(), got); diff != "" {
		t.Fatalf("empty table mismatch (-want +got):\n%s", diff)
	}
}

func TestSlugStore_UpdateLiability(t *testing.T) {
	ctx := context.Background()
	store := NewSlugStore(openTestDB(t))
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	store.now = fixedClock(now)

	got, err := store.UpdateLiability(ctx, core.SlugHELOCLoan, map[string]any{
		"outstandingBalanceUsd": json.Number("42000.129"),
		"interestRatePct":       json.Number("8.25"),
	}, "alice")
	if err != nil {
		t.Fatal(err)
	}
	heloc := got[core.SlugHELOCLoan]
	if *heloc.OutstandingBalanceUSD != 42000.13 || *heloc.InterestRatePct != 8.25 {
		t.Fatalf("heloc = %+v", heloc)
	}
	if !heloc.UpdatedAt.Equal(now) || *heloc.UpdatedBy != "alice" {
		t.Fatalf("audit fields = %v %v", heloc.UpdatedAt, heloc.UpdatedBy)
	}
	if len(got) != 3 {
		t.Fatalf("expected full mapping, got %d", len(got))
	}

	// Partial update keeps other columns.
	got, err = store.UpdateLiability(ctx, core.SlugHELOCLoan, map[string]any{"termMonths": json.Number("240")}, "")
	if err != nil {
		t.Fatal(err)
	}
	if *got[core.SlugHELOCLoan].OutstandingBalanceUSD != 42000.13 || *got[core.SlugHELOCLoan].TermMonths != 240 {
		t.Fatalf("partial update lost data: %+v", got[core.SlugHELOCLoan])
	}

	before, _ := store.Liabilities(ctx)

	if _, err := store.UpdateLiability(ctx, "boat_loan", map[string]any{"termMonths": 1.0}, ""); !errors.Is(err, core.ErrUnknownSlug) {
		t.Fatalf("unknown slug error = %v", err)
	}
	if _, err := store.UpdateLiability(ctx, core.SlugRoofLoan, map[string]any{"interestRatePct": 100.0}, ""); !core.IsValidation(err) {
		t.Fatalf("percent 100 error = %v", err)
	}
	noop, err := store.UpdateLiability(ctx, core.SlugRoofLoan, map[string]any{}, "bob")
	if err != nil {
		t.Fatal(err)
	}

	after, _ := store.Liabilities(ctx)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(before, noop); diff != "" {
		t.Fatalf("no-op result mismatch (-want +got):\n%s", diff)
	}
}

func TestSlugStore_Asset(t *testing.T) {
	ctx := context.Background()
	store := NewSlugStore(openTestDB(t))

	got, err := store.Asset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(core.EmptyAsset(), got); diff != "" {
		t.Fatalf("empty asset mismatch (-want +got):\n%s", diff)
	}

	got, err = store.UpdateAsset(ctx, json.Number("450000"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if *got.ValueUSD != 450000 || *got.UpdatedBy != "alice" || got.Slug != core.AssetSlug {
		t.Fatalf("UpdateAsset() = %+v", got)
	}

	if _, err := store.UpdateAsset(ctx, json.Number("-1"), ""); !core.IsValidation(err) {
		t.Fatalf("negative asset error = %v", err)
	}
	got, _ = store.Asset(ctx)
	if *got.ValueUSD != 450000 {
		t.Fatal("rejected update changed the asset")
	}
}

func TestDropRentRollAccountFK_SQLiteUnsupported(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.DropRentRollAccountFK(context.Background()); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("error = %v, want ErrUnsupported", err)
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.sql.ExecContext(ctx, `
		CREATE TABLE parent (id TEXT PRIMARY KEY);
		CREATE TABLE child (parent_id TEXT NOT NULL REFERENCES parent(id));`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.sql.ExecContext(ctx, `INSERT INTO child (parent_id) VALUES ('nope')`)
	if err == nil || !isForeignKeyViolation(err) {
		t.Fatalf("isForeignKeyViolation(%v) = false", err)
	}
	_, err = db.sql.ExecContext(ctx, `INSERT INTO parent (id) VALUES ('a'), ('a')`)
	if err == nil || isForeignKeyViolation(err) {
		t.Fatalf("unique violation misclassified: %v", err)
	}
}
