// Package dataset serves the static demo snapshot of accounts, balances and
// transactions used when the dashboard runs without a live backend.
package dataset

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
)

// Account is a demo account. Whatever fields the snapshot carries are passed
// through unchanged.
type Account struct {
	ID   string
	Name string
	raw  json.RawMessage
}

func (a *Account) UnmarshalJSON(b []byte) error {
	var head struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	a.ID, a.Name = head.ID, head.Name
	a.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return json.Marshal(map[string]string{"id": a.ID, "name": a.Name})
}

// Balance is the cached balance of one account.
type Balance struct {
	AccountID string          `json:"account_id"`
	CachedAt  *string         `json:"cached_at"`
	Balance   json.RawMessage `json:"balance"`
}

// Transactions is the cached transaction list of one account.
type Transactions struct {
	AccountID    string            `json:"account_id"`
	CachedAt     *string           `json:"cached_at"`
	Transactions []json.RawMessage `json:"transactions"`
}

type cachedEntry struct {
	AccountID    string          `json:"account_id"`
	CachedAt     *string         `json:"cached_at"`
	Balance      json.RawMessage `json:"balance"`
	Transactions json.RawMessage `json:"transactions"`
}

type snapshot struct {
	Accounts     []Account                  `json:"accounts"`
	Balances     map[string]json.RawMessage `json:"balances"`
	Transactions map[string]json.RawMessage `json:"transactions"`
}

// Store is the read-only demo snapshot. It is never mutated after Load.
type Store struct {
	data snapshot
}

// Load reads the snapshot at path. A missing, empty or malformed file yields
// an empty store.
func Load(path string) *Store {
	s := Empty()

	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Demo dataset unavailable", "path", path, "error", err)
		return s
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		slog.Warn("Demo dataset is empty", "path", path)
		return s
	}

	var parsed struct {
		Accounts     json.RawMessage `json:"accounts"`
		Balances     json.RawMessage `json:"balances"`
		Transactions json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		slog.Error("Failed to parse demo dataset", "path", path, "error", err)
		return s
	}
	// Sections of the wrong shape are dropped individually.
	if err := json.Unmarshal(parsed.Accounts, &s.data.Accounts); err != nil {
		s.data.Accounts = nil
	}
	if err := json.Unmarshal(parsed.Balances, &s.data.Balances); err != nil || s.data.Balances == nil {
		s.data.Balances = map[string]json.RawMessage{}
	}
	if err := json.Unmarshal(parsed.Transactions, &s.data.Transactions); err != nil || s.data.Transactions == nil {
		s.data.Transactions = map[string]json.RawMessage{}
	}

	slog.Info("Demo dataset loaded",
		"path", path,
		"accounts", len(s.data.Accounts))
	return s
}

// Empty returns a store with no accounts.
func Empty() *Store {
	return &Store{data: snapshot{
		Balances:     map[string]json.RawMessage{},
		Transactions: map[string]json.RawMessage{},
	}}
}

// FromBytes builds a store from an in-memory snapshot.
func FromBytes(raw []byte) (*Store, error) {
	s := &Store{}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, err
	}
	if s.data.Balances == nil {
		s.data.Balances = map[string]json.RawMessage{}
	}
	if s.data.Transactions == nil {
		s.data.Transactions = map[string]json.RawMessage{}
	}
	return s, nil
}

func (s *Store) Accounts() []Account {
	out := make([]Account, len(s.data.Accounts))
	copy(out, s.data.Accounts)
	return out
}

func (s *Store) Account(id string) (Account, bool) {
	if id == "" {
		return Account{}, false
	}
	for _, a := range s.data.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

func (s *Store) entry(section map[string]json.RawMessage, id string) (cachedEntry, bool) {
	raw, ok := section[id]
	if !ok || id == "" {
		return cachedEntry{}, false
	}
	var e cachedEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return cachedEntry{}, false
	}
	if e.AccountID == "" {
		e.AccountID = id
	}
	return e, true
}

// Balance returns the cached balance for id. A balance that is not a JSON
// object is reported as {}.
func (s *Store) Balance(id string) (Balance, bool) {
	e, ok := s.entry(s.data.Balances, id)
	if !ok {
		return Balance{}, false
	}
	b := bytes.TrimSpace(e.Balance)
	if len(b) == 0 || b[0] != '{' {
		b = json.RawMessage("{}")
	}
	return Balance{AccountID: e.AccountID, CachedAt: e.CachedAt, Balance: b}, true
}

// Transactions returns up to limit cached transactions for id; limit <= 0
// returns them all.
func (s *Store) Transactions(id string, limit int) (Transactions, bool) {
	e, ok := s.entry(s.data.Transactions, id)
	if !ok {
		return Transactions{}, false
	}
	var txs []json.RawMessage
	if err := json.Unmarshal(e.Transactions, &txs); err != nil {
		txs = nil
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	out := make([]json.RawMessage, len(txs))
	copy(out, txs)
	return Transactions{AccountID: e.AccountID, CachedAt: e.CachedAt, Transactions: out}, true
}

// BalanceEntries returns the encoded balance entry of every account that has
// one, for aggregation.
func (s *Store) BalanceEntries() []json.RawMessage {
	var out []json.RawMessage
	for _, a := range s.data.Accounts {
		b, ok := s.Balance(a.ID)
		if !ok {
			continue
		}
		raw, err := json.Marshal(b)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}
