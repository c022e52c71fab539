// Package apperr defines the error taxonomy shared by the scraper, the
// document acquirer and the knowledge pipeline.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Code identifies a failure category.
type Code string

const (
	InvalidFormat              Code = "INVALID_FORMAT"               // 400, not retryable
	NotFound                   Code = "NOT_FOUND"                    // 404, not retryable
	Timeout                    Code = "TIMEOUT"                      // 504
	NetworkFailure             Code = "NETWORK_FAILURE"              // 502
	Unknown                    Code = "UNKNOWN"                      // 500
	BlockedByAntiAutomation    Code = "BLOCKED_BY_ANTI_AUTOMATION"   // 502
	NavigationTimeout          Code = "NAVIGATION_TIMEOUT"           // 504
	DownloadTimeout            Code = "DOWNLOAD_TIMEOUT"             // 504
	EmptyBuffer                Code = "EMPTY_BUFFER"                 // 422
	ExtractionError            Code = "EXTRACTION_ERROR"             // 422
	EmbeddingDimensionMismatch Code = "EMBEDDING_DIMENSION_MISMATCH" // 500
	EmbeddingFailed            Code = "EMBEDDING_FAILED"             // 502
	InvalidRequest             Code = "INVALID_REQUEST"              // 400
	Internal                   Code = "INTERNAL"                     // 500
)

// Error is a categorized failure. Two Errors match under errors.Is when
// their codes are equal.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the default retry policy for the code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Retryable: retryable(code)}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, msg string) *Error {
	e := New(code, msg)
	e.Err = err
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidFormat   = New(InvalidFormat, "invalid format")
	ErrNotFound        = New(NotFound, "not found")
	ErrTimeout         = New(Timeout, "timeout")
	ErrNetworkFailure  = New(NetworkFailure, "network failure")
	ErrBlocked         = New(BlockedByAntiAutomation, "blocked by anti-automation")
	ErrNavTimeout      = New(NavigationTimeout, "navigation timeout")
	ErrDownloadTimeout = New(DownloadTimeout, "download timeout")
	ErrEmptyBuffer     = New(EmptyBuffer, "empty buffer")
	ErrExtraction      = New(ExtractionError, "extraction error")
	ErrDimension       = New(EmbeddingDimensionMismatch, "embedding dimension mismatch")
	ErrEmbedding       = New(EmbeddingFailed, "embedding failed")
	ErrInvalidRequest  = New(InvalidRequest, "invalid request")
)

func retryable(code Code) bool {
	switch code {
	case Timeout, NetworkFailure, BlockedByAntiAutomation, NavigationTimeout, DownloadTimeout, EmptyBuffer, EmbeddingFailed:
		return true
	default:
		return false
	}
}

// CodeOf classifies any error into a Code. Typed errors keep their code;
// deadlines map to Timeout and transport errors to NetworkFailure.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return Timeout
		}
		return NetworkFailure
	}
	// chromedp surfaces Chrome net errors as plain strings.
	if strings.Contains(err.Error(), "net::ERR_") {
		return NetworkFailure
	}
	return Unknown
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return retryable(CodeOf(err))
}

// HTTPStatus maps a code to the status the API layer responds with.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidFormat, InvalidRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case EmptyBuffer, ExtractionError:
		return http.StatusUnprocessableEntity
	case Timeout, NavigationTimeout, DownloadTimeout:
		return http.StatusGatewayTimeout
	case NetworkFailure, BlockedByAntiAutomation, EmbeddingFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
