package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/service"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

type SegmentHandler struct {
	segments *service.SegmentService
	logger   *zap.Logger
}

func NewSegmentHandler(segments *service.SegmentService, logger *zap.Logger) *SegmentHandler {
	return &SegmentHandler{segments: segments, logger: logger}
}

type membershipRequest struct {
	Attributes map[string]any `json:"attributes"`
}

type membershipResponse struct {
	SegmentKey string `json:"segment_key"`
	IsMember   bool   `json:"is_member"`
}

func (h *SegmentHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "segmentKey")

	var req membershipRequest
	if !decodeBody(w, r, &req) {
		return
	}

	member, err := h.segments.EvaluateMembership(r.Context(), key, req.Attributes)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, membershipResponse{SegmentKey: key, IsMember: member})
}

func (h *SegmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var segment types.Segment
	if !decodeBody(w, r, &segment) {
		return
	}

	created, err := h.segments.Create(r.Context(), segment)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	segment, err := h.segments.Get(r.Context(), chi.URLParam(r, "segmentKey"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, segment)
}

func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	segments, err := h.segments.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if segments == nil {
		segments = []types.Segment{}
	}
	respondJSON(w, http.StatusOK, segments)
}

func (h *SegmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var segment types.Segment
	if !decodeBody(w, r, &segment) {
		return
	}
	segment.Key = chi.URLParam(r, "segmentKey")

	updated, err := h.segments.Update(r.Context(), segment)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *SegmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.segments.Delete(r.Context(), chi.URLParam(r, "segmentKey")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
