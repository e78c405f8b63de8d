package http

import (
	"net/http"

	"finboard/internal/core"
	applog "finboard/internal/log"
)

type liabilitiesResponse struct {
	OK          bool             `json:"ok"`
	Liabilities core.Liabilities `json:"liabilities"`
	Source      string           `json:"source,omitempty"`
}

type assetResponse struct {
	OK     bool       `json:"ok"`
	Asset  core.Asset `json:"asset"`
	Source string     `json:"source,omitempty"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.manual.Summary(r.Context())
	if err != nil {
		s.logs.LogError(r.Context(), "Manual summary failed", err, applog.ComponentManual, applog.OpSummary, nil)
		ErrorResponse(http.StatusInternalServerError, "failed_manual_summary").Write(w, r)
		return
	}
	writeJSON(w, r, summary)
}

// handlePutLiability applies a partial update; every body key except
// updatedBy must name a liability field.
func (s *Server) handlePutLiability(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.FeatureManualData || !s.cfg.FeatureManualLiabilities {
		ErrorResponse(http.StatusMethodNotAllowed, "manual_liabilities_disabled").Write(w, r)
		return
	}
	if s.cfg.ManualDataReadOnly {
		ErrorResponse(http.StatusMethodNotAllowed, "manual_data_readonly").Write(w, r)
		return
	}
	slug := r.PathValue("slug")
	if !core.IsLiabilitySlug(slug) {
		ErrorResponse(http.StatusBadRequest, "unknown_slug").Write(w, r)
		return
	}
	body, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	updatedBy := body.String("updatedBy")
	fields := body.Without("updatedBy")

	if s.cfg.ManualDataDryRun {
		all, err := s.previewLiability(r, slug, fields, updatedBy)
		if err != nil {
			s.writeManualError(w, r, scopeLiabilities, applog.OpUpdate, "", err)
			return
		}
		writeJSON(w, r, liabilitiesResponse{OK: true, Liabilities: all, Source: sourceDryRun})
		return
	}

	all, err := s.manual.UpdateLiability(r.Context(), slug, fields, updatedBy)
	if err != nil {
		s.writeManualError(w, r, scopeLiabilities, applog.OpUpdate, "", err)
		return
	}
	writeJSON(w, r, liabilitiesResponse{OK: true, Liabilities: all})
}

// previewLiability validates a patch and applies it to a copy of the
// current liabilities.
func (s *Server) previewLiability(r *http.Request, slug string, fields map[string]any, updatedBy string) (core.Liabilities, error) {
	assignments, err := core.NormalizeLiabilityPatch(slug, fields)
	if err != nil {
		return nil, err
	}
	current, err := s.manual.Liabilities(r.Context())
	if err != nil {
		return nil, err
	}
	all := current.Complete()
	if len(assignments) == 0 {
		return all, nil
	}
	rec := all[slug]
	rec.Apply(assignments)
	rec.UpdatedAt = s.stamp()
	rec.UpdatedBy = nil
	if updatedBy != "" {
		rec.UpdatedBy = &updatedBy
	}
	all[slug] = rec
	return all, nil
}

func (s *Server) handlePutAsset(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.FeatureManualData || !s.cfg.FeatureManualAssets {
		ErrorResponse(http.StatusMethodNotAllowed, "manual_assets_disabled").Write(w, r)
		return
	}
	if s.cfg.ManualDataReadOnly {
		ErrorResponse(http.StatusMethodNotAllowed, "manual_data_readonly").Write(w, r)
		return
	}
	body, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	updatedBy := body.String("updatedBy")

	if s.cfg.ManualDataDryRun {
		value, err := core.NormalizeAssetValue(body["valueUsd"])
		if err != nil {
			s.writeManualError(w, r, scopeAssets, applog.OpUpdate, "", err)
			return
		}
		asset := core.Asset{Slug: core.AssetSlug, ValueUSD: value, UpdatedAt: s.stamp()}
		if updatedBy != "" {
			asset.UpdatedBy = &updatedBy
		}
		writeJSON(w, r, assetResponse{OK: true, Asset: asset, Source: sourceDryRun})
		return
	}

	asset, err := s.manual.UpdateAsset(r.Context(), body["valueUsd"], updatedBy)
	if err != nil {
		s.writeManualError(w, r, scopeAssets, applog.OpUpdate, "", err)
		return
	}
	writeJSON(w, r, assetResponse{OK: true, Asset: asset})
}
