package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"finboard/internal/core"
)

func TestStore_LiabilitiesAlwaysComplete(t *testing.T) {
	s := New()
	got, err := s.Liabilities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var slugs []string
	for _, slug := range core.LiabilitySlugs {
		if _, ok := got[slug]; ok {
			slugs = append(slugs, slug)
		}
	}
	if diff := cmp.Diff(core.LiabilitySlugs, slugs); diff != "" || len(got) != 3 {
		t.Fatalf("slug set mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_UpdateLiability(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.UpdateLiability(ctx, core.SlugRoofLoan, map[string]any{
		"outstandingBalanceUsd": json.Number("8123.456"),
	}, "alice")
	if err != nil {
		t.Fatal(err)
	}
	roof := got[core.SlugRoofLoan]
	if *roof.OutstandingBalanceUSD != 8123.46 {
		t.Fatalf("balance = %v", *roof.OutstandingBalanceUSD)
	}
	if *roof.TermMonths != 120 {
		t.Fatal("untouched default term lost")
	}
	if roof.UpdatedBy == nil || *roof.UpdatedBy != "alice" || roof.UpdatedAt == nil {
		t.Fatalf("missing audit fields: %+v", roof)
	}
	if len(got) != 3 {
		t.Fatalf("expected full mapping, got %d slugs", len(got))
	}
}

func TestStore_UpdateLiabilityRejections(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.UpdateLiability(ctx, core.SlugHELOCLoan, map[string]any{"loanAmountUsd": 100.0}, ""); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Liabilities(ctx)

	if _, err := s.UpdateLiability(ctx, "yacht_loan", map[string]any{"loanAmountUsd": 1.0}, ""); !errors.Is(err, core.ErrUnknownSlug) {
		t.Fatalf("expected ErrUnknownSlug, got %v", err)
	}
	if _, err := s.UpdateLiability(ctx, core.SlugHELOCLoan, map[string]any{"loanAmountUsd": -1.0}, ""); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	after, _ := s.Liabilities(ctx)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("rejected updates mutated state (-before +after):\n%s", diff)
	}
}

func TestStore_EmptyPatchIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New()
	got, err := s.UpdateLiability(ctx, core.SlugHELOCLoan, map[string]any{}, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if got[core.SlugHELOCLoan].UpdatedAt != nil {
		t.Fatal("empty patch stamped a timestamp")
	}
	if len(got) != 3 {
		t.Fatalf("expected full mapping, got %d", len(got))
	}
}

func TestStore_UpdateAsset(t *testing.T) {
	ctx := context.Background()
	s := New()
	asset, err := s.UpdateAsset(ctx, json.Number("450000"), "")
	if err != nil {
		t.Fatal(err)
	}
	if asset.Slug != core.AssetSlug || *asset.ValueUSD != 450000 || asset.UpdatedBy != nil {
		t.Fatalf("unexpected asset %+v", asset)
	}
	if _, err := s.UpdateAsset(ctx, "-1", ""); err == nil {
		t.Fatal("expected negative asset value to fail")
	}
	got, _ := s.Asset(ctx)
	if *got.ValueUSD != 450000 {
		t.Fatal("rejected update changed the asset")
	}
}
