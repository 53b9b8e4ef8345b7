package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/service"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

type FlagHandler struct {
	flags  *service.FlagService
	logger *zap.Logger
}

func NewFlagHandler(flags *service.FlagService, logger *zap.Logger) *FlagHandler {
	return &FlagHandler{flags: flags, logger: logger}
}

type evaluateRequest struct {
	SubjectID string         `json:"subject_id"`
	Context   map[string]any `json:"context,omitempty"`
}

type bulkEvaluateRequest struct {
	FlagKeys  []string       `json:"flag_keys"`
	SubjectID string         `json:"subject_id"`
	Context   map[string]any `json:"context,omitempty"`
}

func (h *FlagHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "flagKey")

	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "subject_id is required"})
		return
	}

	eval, err := h.flags.Evaluate(r.Context(), key, req.SubjectID, req.Context)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

func (h *FlagHandler) EvaluateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkEvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "subject_id is required"})
		return
	}

	results, err := h.flags.EvaluateBulk(r.Context(), req.FlagKeys, req.SubjectID, req.Context)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *FlagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var flag types.Flag
	if !decodeBody(w, r, &flag) {
		return
	}

	created, err := h.flags.Create(r.Context(), flag)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *FlagHandler) Get(w http.ResponseWriter, r *http.Request) {
	flag, err := h.flags.Get(r.Context(), chi.URLParam(r, "flagKey"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, flag)
}

func (h *FlagHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	flags, err := h.flags.List(r.Context(), activeOnly)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if flags == nil {
		flags = []types.Flag{}
	}
	respondJSON(w, http.StatusOK, flags)
}

func (h *FlagHandler) Update(w http.ResponseWriter, r *http.Request) {
	var flag types.Flag
	if !decodeBody(w, r, &flag) {
		return
	}
	flag.Key = chi.URLParam(r, "flagKey")

	updated, err := h.flags.Update(r.Context(), flag)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *FlagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.flags.Delete(r.Context(), chi.URLParam(r, "flagKey")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
