package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const fixture = `{
  "accounts": [
    {"id": "acc_checking", "name": "Checking", "institution": {"id": "chase", "name": "Chase"}, "last_four": "1234", "currency": "USD", "type": "depository", "subtype": "checking"},
    {"id": "acc_savings", "name": "Savings", "currency": "USD", "type": "depository", "subtype": "savings"},
    {"id": "acc_card", "name": "Card", "currency": "USD", "type": "credit", "subtype": "credit_card"}
  ],
  "balances": {
    "acc_checking": {"account_id": "acc_checking", "cached_at": "2025-01-01T00:00:00Z", "balance": {"available": "1520.35", "ledger": "1600.00"}},
    "acc_savings": {"cached_at": null, "balance": "oops"}
  },
  "transactions": {
    "acc_checking": {"account_id": "acc_checking", "cached_at": "2025-01-01T00:00:00Z", "transactions": [{"id": "t1"}, {"id": "t2"}, {"id": "t3"}]},
    "acc_savings": {"transactions": "not-a-list"}
  }
}`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	s := Load(writeFixture(t, fixture))

	accounts := s.Accounts()
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	raw, err := json.Marshal(accounts[0])
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["last_four"] != "1234" || decoded["institution"] == nil {
		t.Fatalf("account fields not passed through: %s", raw)
	}

	if _, ok := s.Account("acc_card"); !ok {
		t.Fatal("Account(acc_card) not found")
	}
	if _, ok := s.Account("missing"); ok {
		t.Fatal("Account(missing) found")
	}
}

func TestLoad_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }},
		{"empty file", func(t *testing.T) string { return writeFixture(t, "  ") }},
		{"malformed", func(t *testing.T) string { return writeFixture(t, "{") }},
		{"wrong shapes", func(t *testing.T) string { return writeFixture(t, `{"accounts": {}, "balances": [], "transactions": 3}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Load(tt.path(t))
			if len(s.Accounts()) != 0 {
				t.Fatal("expected no accounts")
			}
			if _, ok := s.Balance("acc_checking"); ok {
				t.Fatal("expected no balance")
			}
			if len(s.BalanceEntries()) != 0 {
				t.Fatal("expected no balance entries")
			}
		})
	}
}

func TestStore_Balance(t *testing.T) {
	s := Load(writeFixture(t, fixture))

	b, ok := s.Balance("acc_checking")
	if !ok || b.AccountID != "acc_checking" || b.CachedAt == nil {
		t.Fatalf("Balance(acc_checking) = %+v, %v", b, ok)
	}

	b, ok = s.Balance("acc_savings")
	if !ok {
		t.Fatal("Balance(acc_savings) missing")
	}
	if b.AccountID != "acc_savings" || string(b.Balance) != "{}" || b.CachedAt != nil {
		t.Fatalf("Balance(acc_savings) = %+v", b)
	}

	if _, ok := s.Balance("acc_card"); ok {
		t.Fatal("Balance(acc_card) should be missing")
	}
	if got := len(s.BalanceEntries()); got != 2 {
		t.Fatalf("BalanceEntries() = %d entries, want 2", got)
	}
}

func TestStore_Transactions(t *testing.T) {
	s := Load(writeFixture(t, fixture))

	tests := []struct {
		limit int
		want  int
	}{
		{0, 3},
		{2, 2},
		{10, 3},
	}
	for _, tt := range tests {
		got, ok := s.Transactions("acc_checking", tt.limit)
		if !ok || len(got.Transactions) != tt.want {
			t.Errorf("Transactions(limit=%d) = %d items, want %d", tt.limit, len(got.Transactions), tt.want)
		}
	}

	got, ok := s.Transactions("acc_savings", 10)
	if !ok || len(got.Transactions) != 0 {
		t.Fatalf("non-list transactions = %+v, %v", got, ok)
	}
	if _, ok := s.Transactions("acc_card", 10); ok {
		t.Fatal("expected no transactions for acc_card")
	}
}
