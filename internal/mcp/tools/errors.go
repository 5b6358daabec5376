package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/analysis"
	"github.com/usestring/alergia-mcp/internal/pta"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/internal/traceio"
	"github.com/usestring/alergia-mcp/pkg/automaton"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// Error codes for MCP tool responses.
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnusableModel = "UNUSABLE_MODEL"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInternal      = "INTERNAL"
)

// CodedError is an error with an associated error code.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// inputErrors are domain errors caused by the caller's request.
var inputErrors = []error{
	store.ErrInvalidID,
	pta.ErrDivergentRoot,
	alergia.ErrNoTraces,
	alergia.ErrInvalidConfig,
	analysis.ErrAlphabetMismatch,
	analysis.ErrInvalidWeight,
	analysis.ErrInvalidSampling,
	analysis.ErrNoTargets,
	automaton.ErrMalformed,
	automaton.ErrNoStates,
	traceio.ErrUnknownFormat,
	traceio.ErrEmptyLog,
	trace.ErrNegativeDuration,
}

// WrapDomainError converts an error from the learning, analysis or storage
// packages to a coded error.
func WrapDomainError(err error) error {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded
	}

	coded = &CodedError{Code: ErrCodeInternal, Message: "internal error", Cause: err}

	var unconnected *analysis.UnconnectedAutomatonError
	var invalidDoc *traceio.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		coded = &CodedError{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.As(err, &unconnected):
		coded = &CodedError{
			Code:    ErrCodeUnusableModel,
			Message: fmt.Sprintf("%d states cannot reach the target outputs", len(unconnected.States)),
			Cause:   err,
		}
	case errors.As(err, &invalidDoc):
		coded = &CodedError{Code: ErrCodeInvalidInput, Message: invalidDoc.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		coded = &CodedError{Code: ErrCodeTimeout, Message: "operation timed out", Cause: err}
	case isInputError(err):
		coded = &CodedError{Code: ErrCodeInvalidInput, Message: err.Error(), Cause: err}
	}

	level := slog.LevelWarn
	if coded.Code == ErrCodeInternal {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "tool error",
		slog.String("code", coded.Code),
		slog.String("message", coded.Message),
		slog.Any("cause", err),
	)
	return coded
}

func isInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) error {
	return &CodedError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(message string) error {
	return &CodedError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}
