package services

import (
	"context"

	"finboard/internal/core"
)

// SummaryHealth is the compact summary embedded in health reports.
type SummaryHealth struct {
	OK     bool         `json:"ok"`
	Totals *core.Totals `json:"totals,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// StoreHealth describes manual-data connectivity. Connected is nil when no
// relational store is configured.
type StoreHealth struct {
	Connected *bool
	Error     string
}

// Ping checks the relational backend. It never returns an error; failures
// are reported in the result.
func (s *ManualService) Ping(ctx context.Context) StoreHealth {
	if s.pinger == nil {
		return StoreHealth{}
	}
	connected := true
	if err := s.pinger.Ping(ctx); err != nil {
		connected = false
		return StoreHealth{Connected: &connected, Error: err.Error()}
	}
	return StoreHealth{Connected: &connected}
}

// SummaryHealth computes the totals for health and readiness reporting.
func (s *ManualService) SummaryHealth(ctx context.Context) SummaryHealth {
	summary, err := s.Summary(ctx)
	if err != nil {
		return SummaryHealth{OK: false, Error: err.Error()}
	}
	return SummaryHealth{OK: true, Totals: &summary.Calculated}
}
