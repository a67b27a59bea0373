package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/slidegen/internal/document"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/service"
	"github.com/phrazzld/slidegen/internal/service/auth"
	"github.com/phrazzld/slidegen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", service.ErrJobNotFound), http.StatusNotFound},
		{store.ErrJobNotFound, http.StatusNotFound},
		{service.ErrJobFinished, http.StatusConflict},
		{ErrUploadTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("%w: image/png", document.ErrUnsupportedType), http.StatusUnsupportedMediaType},
		{domain.ErrEmptyDocument, http.StatusBadRequest},
		{domain.NewValidationError("id", "bad", domain.ErrInvalidID), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessageHidesDetails(t *testing.T) {
	err := fmt.Errorf("pq: password=hunter2 host=db: %w", errors.New("connection refused"))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(err))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Invalid limit: must be a non-negative integer",
		GetSafeErrorMessage(domain.NewValidationError("limit", "must be a non-negative integer", domain.ErrValidation)))
}

func TestSanitizeValidationError(t *testing.T) {
	err := validator.New().Struct(CreateJobRequest{Kind: "slides", Language: string(make([]byte, 100))})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Invalid language: too long", SanitizeValidationError(verrs))
	assert.Equal(t, "Validation error", SanitizeValidationError(nil))
}
