package http

import (
	"errors"
	"net/http"
	"time"

	"finboard/internal/core"
	applog "finboard/internal/log"
)

// Error scopes; a missing store answers <scope>_store_unavailable.
const (
	scopeRentRoll    = "manual_data"
	scopeFields      = "manual_fields"
	scopeLiabilities = "manual_liabilities"
	scopeAssets      = "manual_assets"
)

const sourceDryRun = "dry-run"

type dryRunRentRoll struct {
	core.RentRoll
	Source string `json:"source"`
}

type dryRunField struct {
	core.FieldValue
	Source string `json:"source"`
}

// handleGetRentRoll never requires the account to exist; rent roll may be
// entered ahead of account wiring.
func (s *Server) handleGetRentRoll(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if !s.cfg.FeatureManualData {
		writeJSON(w, r, core.EmptyRentRoll(accountID, ""))
		return
	}
	rec, err := s.manual.RentRoll(r.Context(), accountID, "")
	if err != nil {
		s.writeManualError(w, r, scopeRentRoll, applog.OpRead, accountID, err)
		return
	}
	writeJSON(w, r, rec)
}

// handlePutRentRoll sets rent_roll, or clears it when null.
func (s *Server) handlePutRentRoll(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	body, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	if !body.Has("rent_roll") {
		ErrorResponse(http.StatusBadRequest, "rent_roll is required (use null to clear)").Write(w, r)
		return
	}
	if s.cfg.ManualDataReadOnly {
		ErrorResponse(http.StatusMethodNotAllowed, "manual_data_readonly").Write(w, r)
		return
	}
	if !s.cfg.FeatureManualData || !s.manual.HasRentRollStore() {
		ErrorResponse(http.StatusServiceUnavailable, scopeRentRoll+"_store_unavailable").Write(w, r)
		return
	}

	amount, err := core.NormalizeCurrency("rent_roll", body["rent_roll"])
	if err != nil {
		s.writeManualError(w, r, scopeRentRoll, applog.OpUpdate, accountID, err)
		return
	}

	if s.cfg.ManualDataDryRun {
		writeJSON(w, r, dryRunRentRoll{
			RentRoll: core.RentRoll{AccountID: accountID, RentRoll: amount, UpdatedAt: s.stamp()},
			Source:   sourceDryRun,
		})
		return
	}

	var (
		rec core.RentRoll
		op  string
	)
	if amount == nil {
		op = applog.OpClear
		rec, err = s.manual.ClearRentRoll(r.Context(), accountID, "")
	} else {
		op = applog.OpUpdate
		rec, err = s.manual.SetRentRoll(r.Context(), accountID, *amount, "")
	}
	if err != nil {
		s.writeManualError(w, r, scopeRentRoll, op, accountID, err)
		return
	}
	writeJSON(w, r, rec)
}

// fieldHandler resolves the field reference from the path and enforces the
// manual-data flag before calling h.
func (s *Server) fieldHandler(domain core.Domain, h func(http.ResponseWriter, *http.Request, core.FieldRef)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.FeatureManualData {
			ErrorResponse(http.StatusNotFound, "manual_data_disabled").Write(w, r)
			return
		}
		h(w, r, core.FieldRef{
			AccountID: r.PathValue("id"),
			Domain:    domain,
			Unit:      r.PathValue("unit"),
			Field:     r.PathValue("field"),
		})
	}
}

func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request, ref core.FieldRef) {
	fv, err := s.manual.Field(r.Context(), ref)
	if err != nil {
		s.writeManualError(w, r, scopeFields, applog.OpRead, ref.AccountID, err)
		return
	}
	writeJSON(w, r, fv)
}

func (s *Server) handlePutField(w http.ResponseWriter, r *http.Request, ref core.FieldRef) {
	if s.cfg.ManualDataReadOnly {
		ErrorResponse(http.StatusMethodNotAllowed, "manual_data_readonly").Write(w, r)
		return
	}
	if !s.manual.HasFieldStore() {
		ErrorResponse(http.StatusServiceUnavailable, scopeFields+"_store_unavailable").Write(w, r)
		return
	}
	body, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	updatedBy := body.String("updated_by")

	if s.cfg.ManualDataDryRun {
		spec, err := ref.Validate()
		if err != nil {
			s.writeManualError(w, r, scopeFields, applog.OpUpdate, ref.AccountID, err)
			return
		}
		value, err := spec.Normalize(body["value"])
		if err != nil {
			s.writeManualError(w, r, scopeFields, applog.OpUpdate, ref.AccountID, err)
			return
		}
		fv := core.FieldValue{AccountID: ref.AccountID, Key: ref.Key(), Value: value, UpdatedAt: s.stamp()}
		if updatedBy != "" {
			fv.UpdatedBy = &updatedBy
		}
		writeJSON(w, r, dryRunField{FieldValue: fv, Source: sourceDryRun})
		return
	}

	fv, err := s.manual.SetField(r.Context(), ref, body["value"], updatedBy)
	if err != nil {
		s.writeManualError(w, r, scopeFields, applog.OpUpdate, ref.AccountID, err)
		return
	}
	writeJSON(w, r, fv)
}

// parseBody decodes the JSON request body, answering 400 or 413 itself on
// failure.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (JSONBody, bool) {
	body, err := ParseJSONBody(w, r)
	if err == nil {
		return body, true
	}
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	ErrorWithMessage(status, "invalid_body", err.Error()).Write(w, r)
	return nil, false
}

func (s *Server) stamp() *time.Time {
	now := s.now().UTC()
	return &now
}
