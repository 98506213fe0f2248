package http

import (
	"context"
	"net/http"

	"tracker/internal/core"
	applog "tracker/internal/log"
)

// fail writes err as a JSON error. Only unexpected errors are logged; user
// mistakes are already visible in the access log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !core.IsValidation(err) && !core.IsNotFound(err) {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path, applog.FieldError, err)
	}
	FromError(err).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.Snapshot()).Write(w)
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	// Validate both before applying either.
	var kind core.Kind
	if req.SelectedType != nil {
		k, err := core.ParseKind(*req.SelectedType)
		if err != nil {
			s.fail(w, r, core.Invalid("selectedType", err))
			return
		}
		kind = k
	}
	if req.CurrencyCode != nil {
		if err := s.ledger.SetCurrency(*req.CurrencyCode); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if kind != "" {
		if err := s.ledger.SetSelectedType(kind); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	NewJSONResponse().Body(s.ledger.Snapshot()).Write(w)
}

// handleReload replaces in-memory state with what the record store holds.
// A fetch failure keeps the current state and returns 502.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.reloadTO)
	defer cancel()

	report, err := s.ledger.Reload(ctx)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Reload failed",
			applog.FieldOperation, applog.OpReload, applog.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "reload failed: "+err.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		ErrorResponse(http.StatusServiceUnavailable, "sync dispatcher not configured").Write(w)
		return
	}
	failed := s.sync.Failed()
	messages := make([]string, 0, len(failed))
	for _, f := range failed {
		messages = append(messages, f.Error())
	}
	NewJSONResponse().Body(map[string]any{
		"stats":  s.sync.Stats(),
		"failed": messages,
	}).Write(w)
}

func (s *Server) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		ErrorResponse(http.StatusServiceUnavailable, "sync dispatcher not configured").Write(w)
		return
	}
	n := s.sync.RetryFailed()
	NewJSONResponse().Status(http.StatusAccepted).Body(map[string]int{"requeued": n}).Write(w)
}
