package delivery

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/service"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

type ExperimentHandler struct {
	experiments *service.ExperimentService
	logger      *zap.Logger
}

func NewExperimentHandler(experiments *service.ExperimentService, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{experiments: experiments, logger: logger}
}

type assignRequest struct {
	SubjectID string         `json:"subject_id"`
	Context   map[string]any `json:"context,omitempty"`
}

type resultsRequest struct {
	Conversions map[string]int64 `json:"conversions"`
}

type concludeRequest struct {
	WinningVariant string `json:"winning_variant"`
	Conclusion     string `json:"conclusion,omitempty"`
}

func (h *ExperimentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "experimentKey")

	var req assignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "subject_id is required"})
		return
	}

	result, err := h.experiments.Assign(r.Context(), key, req.SubjectID, req.Context)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *ExperimentHandler) Results(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "experimentKey")

	var req resultsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	results, err := h.experiments.Results(r.Context(), key, req.Conversions)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *ExperimentHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "experimentKey")

	var req concludeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WinningVariant == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "winning_variant is required"})
		return
	}

	record, err := h.experiments.Conclude(r.Context(), key, req.WinningVariant, req.Conclusion)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (h *ExperimentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var exp types.Experiment
	if !decodeBody(w, r, &exp) {
		return
	}

	created, err := h.experiments.Create(r.Context(), exp)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	exp, err := h.experiments.Get(r.Context(), chi.URLParam(r, "experimentKey"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, exp)
}

func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := types.ExperimentStatus(q.Get("status"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	experiments, err := h.experiments.List(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if experiments == nil {
		experiments = []types.Experiment{}
	}
	respondJSON(w, http.StatusOK, experiments)
}

func (h *ExperimentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var exp types.Experiment
	if !decodeBody(w, r, &exp) {
		return
	}
	exp.Key = chi.URLParam(r, "experimentKey")

	updated, err := h.experiments.Update(r.Context(), exp)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *ExperimentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.experiments.Delete(r.Context(), chi.URLParam(r, "experimentKey")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
