package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/fraudscore/internal/engine"
	ferrors "github.com/gyaneshwarpardhi/fraudscore/internal/errors"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeScoringError maps a scoring failure to its status: request problems
// are 422, deployment problems 503, back-pressure 429/504.
func writeScoringError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Kind: string(ferrors.KindOf(err))})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ferrors.ErrParse), errors.Is(err, ferrors.ErrPreprocessing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ferrors.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
