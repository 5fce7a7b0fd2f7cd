/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template corresponding to every application
// error code. A zero Status defaults to HTTP 200 at construction time.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Session Business Logic Errors
	ErrSessionNotFound: {Code: ErrSessionNotFound, Message: "Session not found.", Status: http.StatusNotFound},

	// 3xxx: Authentication Errors
	ErrTokenMissing:         {Code: ErrTokenMissing, Message: "Authentication token required.", Status: http.StatusUnauthorized},
	ErrTokenMalformed:       {Code: ErrTokenMalformed, Message: "Malformed authentication token.", Status: http.StatusUnauthorized},
	ErrTokenSignature:       {Code: ErrTokenSignature, Message: "Invalid token signature.", Status: http.StatusUnauthorized},
	ErrTokenPayload:         {Code: ErrTokenPayload, Message: "Invalid token payload.", Status: http.StatusUnauthorized},
	ErrTokenMissingSlug:     {Code: ErrTokenMissingSlug, Message: "Token carries no session.", Status: http.StatusUnauthorized},
	ErrTokenExpired:         {Code: ErrTokenExpired, Message: "Authentication token expired.", Status: http.StatusUnauthorized},
	ErrTokenUnauthenticated: {Code: ErrTokenUnauthenticated, Message: "Token carries no user identity.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
