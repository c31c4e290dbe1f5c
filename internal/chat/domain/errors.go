package domain

import "errors"

var (
	// ErrForbidden caller is not a participant / not allowed
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound unknown conversation or message
	ErrNotFound = errors.New("not found")
	// ErrValidation empty content, malformed attachment, bad request
	ErrValidation = errors.New("validation failed")
	// ErrRecipientOffline recipient has no live connection, logged only
	ErrRecipientOffline = errors.New("recipient offline")
)

// Wire error codes
const (
	CodeForbidden  = "forbidden"
	CodeNotFound   = "not_found"
	CodeValidation = "validation"
	CodeInternal   = "internal"
)

// ErrorCode map an error to its wire code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeInternal
	}
}

// ErrorFromCode map a wire code back to its error kind
func ErrorFromCode(code string) error {
	switch code {
	case CodeForbidden:
		return ErrForbidden
	case CodeNotFound:
		return ErrNotFound
	case CodeValidation:
		return ErrValidation
	default:
		return nil
	}
}
