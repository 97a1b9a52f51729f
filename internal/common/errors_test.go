package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", NewKindError(KindInvalidInput, "bad extension", nil), http.StatusBadRequest},
		{"unsupported", NewKindError(KindUnsupportedType, "tiff", nil), http.StatusBadRequest},
		{"decode", NewKindError(KindDecodeFailure, "pdftoppm", errors.New("boom")), http.StatusBadRequest},
		{"too large", NewKindError(KindTooLarge, "6MB", nil), http.StatusRequestEntityTooLarge},
		{"ocr", fmt.Errorf("region top: %w", ErrOCREngine), http.StatusInternalServerError},
		{"persistence", NewKindError(KindPersistenceFailure, "upload", errors.New("denied")), http.StatusInternalServerError},
		{"plain", errors.New("whatever"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := WrapError(NewKindError(KindTooLarge, "body", nil), "validate")
	assert.Equal(t, KindTooLarge, KindOf(err))
	assert.ErrorIs(t, err, ErrTooLarge)

	assert.Equal(t, KindInvalidInput, KindOf(fmt.Errorf("x: %w", ErrInvalidInput)))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError("CONFIG_ERROR", "S3_BUCKET is required", ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR: S3_BUCKET is required: invalid input", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
