package http

import (
	"crypto/subtle"
	"net/http"

	applog "finboard/internal/log"
	"finboard/internal/services"
)

const migrationSecretHeader = "X-Manual-Data-Migration-Secret"

type manualHealth struct {
	Enabled   bool                    `json:"enabled"`
	ReadOnly  bool                    `json:"readonly"`
	DryRun    bool                    `json:"dryRun"`
	Connected *bool                   `json:"connected"`
	Summary   *services.SummaryHealth `json:"summary"`
	Error     string                  `json:"error,omitempty"`
}

type healthResponse struct {
	OK          bool         `json:"ok"`
	BackendURL  string       `json:"backendUrl"`
	RateLimited int64        `json:"rateLimited"`
	ManualData  manualHealth `json:"manualData"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.runtime.Resolve(r.Context()))
}

// handleHealth always answers 200; failures show up as ok:false.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		OK:          true,
		BackendURL:  s.cfg.BackendURL,
		RateLimited: s.limiter.Rejected(),
		ManualData:  manualHealth{
			Enabled:  s.cfg.FeatureManualData,
			ReadOnly: s.cfg.ManualDataReadOnly,
			DryRun:   s.cfg.ManualDataDryRun,
		},
	}

	if s.cfg.FeatureManualData {
		store := s.manual.Ping(r.Context())
		resp.ManualData.Connected = store.Connected
		if store.Connected != nil && !*store.Connected {
			resp.OK = false
			resp.ManualData.Error = store.Error
		}
		summary := s.manual.SummaryHealth(r.Context())
		resp.ManualData.Summary = &summary
	}

	writeJSON(w, r, resp)
}

func (s *Server) handleDropFK(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.FeatureManualData || s.cfg.ManualDataMigrationSecret == "" || !s.manual.CanMigrate() {
		ErrorResponse(http.StatusServiceUnavailable, "manual_data_not_enabled").Write(w, r)
		return
	}

	provided := r.Header.Get(migrationSecretHeader)
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.ManualDataMigrationSecret)) != 1 {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected migration request",
			applog.FieldOperation, applog.OpMigrate)
		ErrorResponse(http.StatusForbidden, "forbidden").Write(w, r)
		return
	}

	steps, err := s.manual.DropRentRollAccountFK(r.Context())
	if err != nil {
		s.logs.LogError(r.Context(), "Migration failed", err, applog.ComponentMigrate, applog.OpMigrate, nil)
		ErrorWithMessage(http.StatusInternalServerError, "migration_failed", err.Error()).Write(w, r)
		return
	}

	writeJSON(w, r, map[string]any{"success": true, "steps": steps})
}
