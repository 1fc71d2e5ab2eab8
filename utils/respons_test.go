package utils

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/restaurant-pos/apperrors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("op", "bad"), http.StatusBadRequest},
		{"not found", apperrors.NotFound("op", "x"), http.StatusNotFound},
		{"stock", apperrors.InsufficientStock("op", "x"), http.StatusConflict},
		{"conflict", apperrors.Conflict("op", "x"), http.StatusConflict},
		{"hard persistence", apperrors.Persistence("op", errors.New("boom")), http.StatusInternalServerError},
		{"retryable persistence", apperrors.Persistence("op", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
