package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := Parse("signup_time", "invalid timestamp", fmt.Errorf("bad layout"))
	assert.Equal(t, "[PARSE_ERROR] signup_time: invalid timestamp: bad layout", err.Error())

	err = Preprocessing("", "feature shape mismatch")
	assert.Equal(t, "[PREPROCESSING_ERROR] feature shape mismatch", err.Error())
}

func TestError_IsByKind(t *testing.T) {
	wrapped := fmt.Errorf("score: %w", Preprocessing("browser", `unseen category "Opera"`))

	assert.True(t, errors.Is(wrapped, ErrPreprocessing))
	assert.False(t, errors.Is(wrapped, ErrParse))
	assert.False(t, errors.Is(wrapped, ErrModelUnavailable))
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("open models/pipeline: no such file")
	err := Unavailable("load artifacts", cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Parse("purchase_time", "x", nil), KindParse},
		{fmt.Errorf("wrap: %w", Unavailable("x", nil)), KindModelUnavailable},
		{fmt.Errorf("plain"), ""},
		{nil, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, KindOf(tc.err))
	}
}
