package usecase

import (
	"context"
	"errors"

	domrepo "GridCast/internal/domain/repository"
)

var (
	// ErrInsufficientHistory is returned by the historical mode when the
	// seed window is too sparse; the orchestrator retries iteratively.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrModelFailure wraps an error or a non-finite output from either
	// model at request time.
	ErrModelFailure = errors.New("model failure")
	// ErrInvalidHorizon is the only error PredictHorizon returns.
	ErrInvalidHorizon = errors.New("invalid horizon")
)

// Fallback reasons, also used as metric labels.
const (
	ReasonDeadline           = "deadline"
	ReasonNoHistory          = "no_history"
	ReasonHistoryUnavailable = "history_unavailable"
	ReasonModelFailure       = "model_failure"
	ReasonUnknown            = "error"
)

type historyError struct{ err error }

func (e historyError) Error() string { return "history source: " + e.err.Error() }
func (e historyError) Unwrap() error { return e.err }

func fallbackReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadline
	case errors.Is(err, domrepo.ErrNoHistory):
		return ReasonNoHistory
	case errors.Is(err, ErrModelFailure):
		return ReasonModelFailure
	case errors.As(err, &historyError{}):
		return ReasonHistoryUnavailable
	default:
		return ReasonUnknown
	}
}
