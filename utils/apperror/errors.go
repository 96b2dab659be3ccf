// Package apperror holds the sentinel errors services return and the HTTP
// status and code each one maps to. Services wrap these with fmt.Errorf and %w.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized      = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrCourseNotFound    = errors.New("course not found")
	ErrAlreadyPurchased  = errors.New("course already purchased")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotEntitled       = errors.New("no completed purchase for this course")
	ErrFileUnavailable   = errors.New("course file is not available")
	ErrValidation        = errors.New("validation failed")
	ErrPaymentIncomplete = errors.New("payment not completed")
	ErrSignatureInvalid  = errors.New("webhook signature verification failed")
	ErrTokenInvalid      = errors.New("token is invalid or expired")
	ErrUpstream          = errors.New("upstream service failure")
	ErrSignInRequired    = errors.New("an account already exists for this email, sign in to continue")
)

// Mapping is the transport view of a sentinel. Message is what clients see.
// Only Detailed sentinels expose the wrapped message, which services build
// from caller input and never from upstream errors.
type Mapping struct {
	Status   int
	Code     string
	Message  string
	Detailed bool
}

var mappings = []struct {
	err error
	m   Mapping
}{
	{ErrUnauthorized, Mapping{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED"}},
	{ErrForbidden, Mapping{Status: http.StatusForbidden, Code: "FORBIDDEN"}},
	{ErrNotEntitled, Mapping{Status: http.StatusForbidden, Code: "NOT_PURCHASED"}},
	{ErrCourseNotFound, Mapping{Status: http.StatusNotFound, Code: "COURSE_NOT_FOUND"}},
	{ErrFileUnavailable, Mapping{Status: http.StatusNotFound, Code: "FILE_UNAVAILABLE"}},
	{ErrNotFound, Mapping{Status: http.StatusNotFound, Code: "NOT_FOUND"}},
	{ErrAlreadyPurchased, Mapping{Status: http.StatusBadRequest, Code: "ALREADY_PURCHASED"}},
	{ErrAlreadyExists, Mapping{Status: http.StatusConflict, Code: "CONFLICT"}},
	{ErrValidation, Mapping{Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Detailed: true}},
	{ErrPaymentIncomplete, Mapping{Status: http.StatusPaymentRequired, Code: "PAYMENT_INCOMPLETE"}},
	{ErrSignatureInvalid, Mapping{Status: http.StatusBadRequest, Code: "INVALID_SIGNATURE"}},
	{ErrTokenInvalid, Mapping{Status: http.StatusBadRequest, Code: "INVALID_TOKEN"}},
	{ErrUpstream, Mapping{Status: http.StatusBadGateway, Code: "UPSTREAM_ERROR"}},
	{ErrSignInRequired, Mapping{Status: http.StatusConflict, Code: "SIGN_IN_REQUIRED"}},
}

// Lookup returns the mapping for the first sentinel err wraps.
// ok is false for errors that are not part of the public contract.
func Lookup(err error) (Mapping, bool) {
	for _, entry := range mappings {
		if errors.Is(err, entry.err) {
			m := entry.m
			m.Message = entry.err.Error()
			if m.Detailed {
				m.Message = err.Error()
			}
			return m, true
		}
	}
	return Mapping{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Internal server error"}, false
}
