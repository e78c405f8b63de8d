package amqp

import (
	"encoding/json"
	"time"
)

// Change scopes carried by ManualChange.
const (
	ScopeRentRoll  = "rent_roll"
	ScopeField     = "field"
	ScopeLiability = "liability"
	ScopeAsset     = "asset"
)

// ManualChange announces that a manual-data record was written. It carries
// identifiers only; consumers read the current value from the API.
type ManualChange struct {
	Scope     string    `json:"scope"`
	AccountID string    `json:"account_id,omitempty"`
	Key       string    `json:"key,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Cleared   bool      `json:"cleared,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewManualChange(scope string) *ManualChange {
	return &ManualChange{
		Scope:     scope,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is the topic-exchange key, e.g. "manual.liability".
func (m *ManualChange) RoutingKey() string {
	return "manual." + m.Scope
}

func (m *ManualChange) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

