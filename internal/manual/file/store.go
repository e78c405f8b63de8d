// Package file implements the rent-roll store on top of a single JSON file.
//
// All writes go through a FIFO gate: a write holds the gate exclusively for its
// whole read-modify-write cycle, reads share it. A read requested after a write
// has been queued waits for that write to finish.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"finboard/internal/core"
)

// gateSize is the total weight of the gate. Readers take one unit, writers
// take all of it.
const gateSize = 1 << 20

type record struct {
	RentRoll  *float64 `json:"rent_roll"`
	UpdatedAt string   `json:"updated_at"`
	Currency  string   `json:"currency,omitempty"`
}

// Store is a rent-roll store persisted as {account_id: record} JSON.
type Store struct {
	path string
	gate *semaphore.Weighted
	now  func() time.Time

	initOnce sync.Once
	initErr  error
}

// New returns a store backed by the file at path. The file and its directory
// are created on Init.
func New(path string) *Store {
	return &Store{
		path: path,
		gate: semaphore.NewWeighted(gateSize),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Init creates the backing file with an empty object when missing. It is safe
// to call repeatedly; every operation calls it first.
func (s *Store) Init(_ context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureStorage()
	})
	return s.initErr
}

func (s *Store) ensureStorage() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create manual data directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create manual data file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("{}\n"); err != nil {
		return fmt.Errorf("seed manual data file: %w", err)
	}
	return nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}

func (s *Store) acquireRead(ctx context.Context) (func(), error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.gate.Release(1) }, nil
}

func (s *Store) acquireWrite(ctx context.Context) (func(), error) {
	if err := s.gate.Acquire(ctx, gateSize); err != nil {
		return nil, err
	}
	return func() { s.gate.Release(gateSize) }, nil
}

// Get returns the stored record or a null placeholder.
func (s *Store) Get(ctx context.Context, accountID, currency string) (core.RentRoll, error) {
	if err := s.Init(ctx); err != nil {
		return core.RentRoll{}, err
	}
	release, err := s.acquireRead(ctx)
	if err != nil {
		return core.RentRoll{}, err
	}
	defer release()

	data := s.readAllLocked(ctx)
	return format(accountID, data[accountID], currency), nil
}

// Set validates and rounds amount, then persists it.
func (s *Store) Set(ctx context.Context, accountID string, amount float64, currency string) (core.RentRoll, error) {
	rounded, err := core.RoundCurrency("rent_roll", amount)
	if err != nil {
		return core.RentRoll{}, err
	}

	var out core.RentRoll
	err = s.update(ctx, func(data map[string]*record) {
		rec := &record{
			RentRoll:  &rounded,
			UpdatedAt: s.now().Format(time.RFC3339Nano),
			Currency:  currency,
		}
		data[accountID] = rec
		out = format(accountID, rec, currency)
	})
	if err != nil {
		return core.RentRoll{}, err
	}
	return out, nil
}

// Clear removes the account's entry and returns the null placeholder.
func (s *Store) Clear(ctx context.Context, accountID, currency string) (core.RentRoll, error) {
	err := s.update(ctx, func(data map[string]*record) {
		delete(data, accountID)
	})
	if err != nil {
		return core.RentRoll{}, err
	}
	return core.EmptyRentRoll(accountID, currency), nil
}

// update runs one serialized read-modify-write cycle. The gate is released on
// every path so a failed write never blocks the ones queued behind it.
func (s *Store) update(ctx context.Context, mutate func(map[string]*record)) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	release, err := s.acquireWrite(ctx)
	if err != nil {
		return err
	}
	defer release()

	data := s.readAllLocked(ctx)
	mutate(data)
	return s.writeAllLocked(data)
}

// readAllLocked reads the file without touching the gate. Callers must hold
// it. Unreadable or malformed files read as empty.
func (s *Store) readAllLocked(ctx context.Context) map[string]*record {
	data := map[string]*record{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read manual data file", "path", s.path, "error", err)
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.ErrorContext(ctx, "Failed to parse manual data file", "path", s.path, "error", err)
		return map[string]*record{}
	}
	return data
}

// writeAllLocked replaces the file atomically through a temp file and rename.
func (s *Store) writeAllLocked(data map[string]*record) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manual data: %w", err)
	}
	payload = append(payload, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".manual-data-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace manual data file: %w", err)
	}
	return nil
}

func format(accountID string, rec *record, currency string) core.RentRoll {
	out := core.EmptyRentRoll(accountID, currency)
	if rec == nil {
		return out
	}
	out.RentRoll = rec.RentRoll
	if ts, err := time.Parse(time.RFC3339Nano, rec.UpdatedAt); err == nil {
		out.UpdatedAt = &ts
	}
	if out.Currency == "" {
		out.Currency = rec.Currency
	}
	return out
}
