package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"finboard/internal/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestManualctl_SQLiteWorkflow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "manual.db"))
	t.Setenv("STATIC_DB_PATH", filepath.Join(dir, "missing.json"))

	out, err := execute(t, "migrate", "--backend", "sqlite")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema up to date (sqlite)") {
		t.Errorf("migrate output = %q", out)
	}

	if _, err := execute(t, "set-asset", "--backend", "sqlite", "--value", "450000", "--by", "ops"); err != nil {
		t.Fatalf("set-asset: %v", err)
	}
	if _, err := execute(t, "set-liability", "roof_loan", "--backend", "sqlite", "--field", "outstandingBalanceUsd=1000.5"); err != nil {
		t.Fatalf("set-liability: %v", err)
	}

	out, err = execute(t, "summary", "--backend", "sqlite")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var summary core.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	want := core.Totals{TotalAssets: 450000, TotalLiabilities: 1000.5, TotalEquity: 448999.5}
	if summary.Calculated != want {
		t.Errorf("totals = %+v, want %+v", summary.Calculated, want)
	}

	if _, err := execute(t, "set-liability", "yacht_loan", "--backend", "sqlite", "--field", "loanAmountUsd=1"); err == nil {
		t.Error("expected unknown slug to fail")
	}
	if _, err := execute(t, "drop-fk", "--backend", "sqlite"); err == nil {
		t.Error("expected drop-fk to fail without postgres")
	}
}
