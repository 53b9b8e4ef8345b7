package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/service"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

type RuleHandler struct {
	rules  *service.RuleService
	logger *zap.Logger
}

func NewRuleHandler(rules *service.RuleService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{rules: rules, logger: logger}
}

type evaluateRulesRequest struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

func (h *RuleHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRulesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "type is required"})
		return
	}

	matched, err := h.rules.EvaluateRules(r.Context(), req.Type, req.Attributes)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if matched == nil {
		matched = []types.Rule{}
	}
	respondJSON(w, http.StatusOK, matched)
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule types.Rule
	if !decodeBody(w, r, &rule) {
		return
	}

	created, err := h.rules.Create(r.Context(), rule)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.Context(), chi.URLParam(r, "ruleKey"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	ruleType := r.URL.Query().Get("type")
	if ruleType == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "type query parameter is required"})
		return
	}

	rules, err := h.rules.ListByType(r.Context(), ruleType)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if rules == nil {
		rules = []types.Rule{}
	}
	respondJSON(w, http.StatusOK, rules)
}

func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var rule types.Rule
	if !decodeBody(w, r, &rule) {
		return
	}
	rule.Key = chi.URLParam(r, "ruleKey")

	updated, err := h.rules.Update(r.Context(), rule)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), chi.URLParam(r, "ruleKey")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
