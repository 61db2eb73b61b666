package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/services"
)

type QueryHandler struct {
	rag *services.RAGService
	log *zap.Logger
}

func NewQueryHandler(rag *services.RAGService, log *zap.Logger) *QueryHandler {
	return &QueryHandler{rag: rag, log: log}
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// Query answers a question from the ingested documents.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := h.rag.Answer(r.Context(), req.Question, req.TopK)
	if err != nil {
		h.log.Error("rag query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SimilarChunks returns raw retrieval results without generation.
func (h *QueryHandler) SimilarChunks(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := h.rag.SimilarChunks(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
