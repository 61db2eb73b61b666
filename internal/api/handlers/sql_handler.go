package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/services"
)

type SQLHandler struct {
	sql *services.SQLService
	log *zap.Logger
}

func NewSQLHandler(sql *services.SQLService, log *zap.Logger) *SQLHandler {
	return &SQLHandler{sql: sql, log: log}
}

type generateRequest struct {
	Question string `json:"question"`
}

// Generate converts a question into SQL and parks it for approval. Nothing
// touches the database until Resolve approves it.
func (h *SQLHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.sql.Generate(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, services.ErrNotTrained) {
			writeError(w, http.StatusServiceUnavailable, "schema context not ready")
			return
		}
		h.log.Error("sql generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type resolveRequest struct {
	QueryID  string `json:"query_id"`
	Approved bool   `json:"approved"`
}

// Resolve applies the human decision to a pending query. Each query id is
// resolvable exactly once.
func (h *SQLHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QueryID == "" {
		writeError(w, http.StatusBadRequest, "query_id is required")
		return
	}

	result, err := h.sql.Resolve(r.Context(), req.QueryID, req.Approved)
	if err != nil {
		if errors.Is(err, services.ErrQueryNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Pending lists queries awaiting a decision.
func (h *SQLHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending := h.sql.PendingQueries()
	writeJSON(w, http.StatusOK, map[string]any{
		"pending_queries": pending,
		"total":           len(pending),
	})
}
