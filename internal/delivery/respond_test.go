package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/internal/service"
)

func TestRespondError_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("flag %q: %w", "x", database.ErrNotFound), http.StatusNotFound},
		{"duplicate key", fmt.Errorf("flag %q: %w", "x", database.ErrDuplicateKey), http.StatusConflict},
		{"validation", fmt.Errorf("%w: weights", service.ErrValidation), http.StatusBadRequest},
		{"unknown variant", fmt.Errorf("no variant: %w", service.ErrUnknownVariant), http.StatusBadRequest},
		{"invalid transition", fmt.Errorf("DRAFT -> CONCLUDED: %w", service.ErrInvalidTransition), http.StatusBadRequest},
		{"not running", fmt.Errorf("status DRAFT: %w", service.ErrExperimentNotRunning), http.StatusConflict},
		{"already concluded", fmt.Errorf("again: %w", service.ErrExperimentConcluded), http.StatusConflict},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, zap.NewNop(), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRespondError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, zap.NewNop(), errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestDecodeBody_RejectsMalformedJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var dest map[string]any
	ok := decodeBody(rec, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
