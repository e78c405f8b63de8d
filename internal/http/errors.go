package http

import (
	"errors"
	"net/http"

	"finboard/internal/core"
	applog "finboard/internal/log"
)

const fkHint = "Seed this account_id in the referenced accounts table or relax the FK constraint"

// statusFor maps a manual-data error to its HTTP status and log error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnknownSlug), core.IsValidation(err):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrFKViolation):
		return http.StatusFailedDependency, applog.ErrorTypeForeignKey
	case errors.Is(err, core.ErrReadOnly):
		return http.StatusMethodNotAllowed, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrFeatureDisabled):
		return http.StatusNotFound, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, core.ErrUnsupported):
		return http.StatusServiceUnavailable, applog.ErrorTypeUnavailable
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway, applog.ErrorTypeNetwork
	default:
		return http.StatusInternalServerError, applog.ErrorTypeDatabase
	}
}

// writeManualError answers a failed manual-data call. Client errors get a
// validation body; everything else is logged with its scope and account.
func (s *Server) writeManualError(w http.ResponseWriter, r *http.Request, scope, operation, accountID string, err error) {
	status, errorType := statusFor(err)
	body := &APIError{Message: err.Error()}

	switch status {
	case http.StatusBadRequest:
		body.Error = "validation_failed"
		if errors.Is(err, core.ErrUnknownSlug) {
			body.Error = "unknown_slug"
		}
	case http.StatusFailedDependency:
		body.Error = "Failed to persist manual data"
		body.Code = "FK_VIOLATION"
		body.Hint = fkHint
	case http.StatusServiceUnavailable:
		body.Error = scope + "_store_unavailable"
	default:
		body.Error = "Failed to persist manual data"
		if operation == applog.OpRead {
			body.Error = "Failed to read manual data"
		}
	}

	if status >= http.StatusInternalServerError || status == http.StatusFailedDependency {
		s.logs.LogManualFailure(r.Context(), scope, operation, accountID, err, errorType)
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Manual data request rejected",
			applog.FieldScope, scope,
			applog.FieldOperation, operation,
			applog.FieldAccountID, accountID,
			applog.FieldError, err)
	}

	NewJSONResponse().Status(status).Body(body).Write(w, r)
}
