package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"MarketGate/internal/domain/models"
	xhttp "MarketGate/pkg/http"
)

// ErrorKind is the shared failure taxonomy every adapter translates into.
type ErrorKind string

const (
	AuthFailure ErrorKind = "AuthFailure"
	RateLimited ErrorKind = "RateLimited"
	NotFound    ErrorKind = "NotFound"
	Timeout     ErrorKind = "Timeout"
	Malformed   ErrorKind = "Malformed"
	Unknown     ErrorKind = "Unknown"
)

// Flag maps the kind to the quality flag reported to callers.
func (k ErrorKind) Flag() models.QualityFlag {
	switch k {
	case AuthFailure:
		return models.FlagAuthFail
	case RateLimited:
		return models.FlagRateLimited
	case NotFound:
		return models.FlagNoData
	case Timeout:
		return models.FlagTimeout
	default:
		return models.FlagProviderError
	}
}

// CountsAsFailure is false for per-symbol outcomes that say nothing about provider health.
func (k ErrorKind) CountsAsFailure() bool {
	return k != NotFound
}

// Error is the tagged error returned by adapters.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
}

// Unwrap returns underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a tagged adapter error.
func NewError(kind ErrorKind, provider, op string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Err: err}
}

// Errorf creates a tagged adapter error with a formatted cause.
func Errorf(kind ErrorKind, provider, op, format string, a ...interface{}) *Error {
	return NewError(kind, provider, op, fmt.Errorf(format, a...))
}

// KindOf extracts the taxonomy kind from any error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// Classify translates a transport or decoding error into the taxonomy.
func Classify(provider, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return NewError(kindForStatus(se.Code), provider, op, err)
	}

	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return NewError(Timeout, provider, op, err)
	case isDecodeError(err):
		return NewError(Malformed, provider, op, err)
	}
	return NewError(Unknown, provider, op, err)
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return AuthFailure
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code == http.StatusNotFound:
		return NotFound
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return Timeout
	default:
		return Unknown
	}
}

func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var num *strconv.NumError
	return errors.As(err, &syn) || errors.As(err, &typ) || errors.As(err, &num) || errors.Is(err, xhttp.ErrDecode)
}
