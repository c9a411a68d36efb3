package client

import (
	"errors"
	"net/http"
)

// Failure kinds. An *APIError matches exactly one of them via errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid code")
	ErrExpired            = errors.New("expired")
	ErrNotFound           = errors.New("not found")
	ErrNotApproved        = errors.New("not approved")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnavailable        = errors.New("server unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnexpected         = errors.New("unexpected error")
)

// Fallback messages used when the server did not supply one.
const (
	MessageUnexpected = "An unexpected error occurred"
	MessageNetwork    = "Network error. Please check your connection."
)

// APIError is a failed backend call. Message is meant for the end user:
// the server's own text when there was one, a generic fallback otherwise.
type APIError struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Is(target error) bool {
	return e.Kind == target
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Reclassify returns a copy of err with its kind replaced. Errors that are
// not *APIError are returned unchanged.
func Reclassify(err error, kind error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	cp := *apiErr
	cp.Kind = kind
	return &cp
}

// StatusOf reports the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the user-facing text for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrNotApproved
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusGone:
		return ErrExpired
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUnexpected
	}
}
