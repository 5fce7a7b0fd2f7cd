/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1002
)

// 2xxx: Session Business Logic Errors
const (
	// ErrSessionNotFound indicates that the requested session slug has no active participants.
	ErrSessionNotFound = 2001
)

// 3xxx: Authentication Errors
const (
	// ErrTokenMissing indicates that no session token was presented during the handshake.
	ErrTokenMissing = 3001

	// ErrTokenMalformed indicates the token did not split into its two segments.
	ErrTokenMalformed = 3002

	// ErrTokenSignature indicates the token signature did not match the payload.
	ErrTokenSignature = 3003

	// ErrTokenPayload indicates the token payload was not a valid JSON object.
	ErrTokenPayload = 3004

	// ErrTokenMissingSlug indicates the token carried no session slug claim.
	ErrTokenMissingSlug = 3005

	// ErrTokenExpired indicates the token's expiry claim is in the past.
	ErrTokenExpired = 3006

	// ErrTokenUnauthenticated indicates the token carried no user identity.
	ErrTokenUnauthenticated = 3007
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
