/*
Package sessiontoken verifies the opaque session credentials presented during
the relay handshake.

A token is two segments separated by a dot: a base64url-encoded (unpadded)
JSON payload and a lowercase hex HMAC-SHA256 signature computed over the exact
encoded-payload bytes with the shared secret. Tokens are only verified here;
issuance belongs to the external application server.
*/
package sessiontoken

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Verification failures, checked in this order.
var (
	// ErrMalformedToken indicates the token did not split into exactly two non-empty segments.
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidSignature indicates the signature did not match the encoded payload.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrInvalidPayload indicates the decoded payload was not a JSON object.
	ErrInvalidPayload = errors.New("invalid token payload")

	// ErrMissingSlug indicates the payload carried no slug claim.
	ErrMissingSlug = errors.New("token missing slug")

	// ErrTokenExpired indicates the exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")

	// ErrUnauthenticated indicates the payload carried no user identity.
	ErrUnauthenticated = errors.New("token missing user identity")
)

// Claims holds the verified identity and session scope extracted from a token.
type Claims struct {
	// UserID is the authenticated user identifier, normalized to its string form.
	UserID string

	// DisplayName is the user's display name, defaulting to UserID when absent.
	DisplayName string

	// Slug is the collaboration session the token was issued for.
	Slug string

	// Exp is the Unix expiry of the token in seconds, or 0 when the claim was absent.
	Exp int64
}

// Verifier validates session tokens against a shared secret.
type Verifier struct {
	secret []byte

	// now is the clock used for expiry checks, overridable in tests.
	now func() time.Time
}

// NewVerifier returns a Verifier bound to the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// tokenPayload mirrors the JSON claims embedded in a token. UserID and Exp are
// declared loosely because issuers send user_id as either a string or a number.
type tokenPayload struct {
	Slug        any          `json:"slug"`
	UserID      any          `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Exp         *json.Number `json:"exp"`
}

// Verify validates the token and extracts its claims. It is a pure function of
// the token, the shared secret, and the current time.
func (v *Verifier) Verify(token string) (*Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return nil, ErrMalformedToken
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(encoded))
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal keeps the comparison timing-safe.
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	trimmed := bytes.TrimSpace(payloadBytes)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidPayload
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var payload tokenPayload
	if err := decoder.Decode(&payload); err != nil {
		return nil, ErrInvalidPayload
	}

	slug, ok := payload.Slug.(string)
	if !ok || slug == "" {
		return nil, ErrMissingSlug
	}

	var exp int64
	if payload.Exp != nil {
		expValue, err := payload.Exp.Float64()
		if err != nil {
			return nil, ErrInvalidPayload
		}
		if expValue < float64(v.now().Unix()) {
			return nil, ErrTokenExpired
		}
		exp = int64(expValue)
	}

	userID, err := normalizeUserID(payload.UserID)
	if err != nil {
		return nil, err
	}

	displayName := payload.DisplayName
	if displayName == "" {
		displayName = userID
	}

	return &Claims{
		UserID:      userID,
		DisplayName: displayName,
		Slug:        slug,
		Exp:         exp,
	}, nil
}

// normalizeUserID collapses the string-or-number user_id claim to a string.
// json.Number preserves integer literals exactly, avoiding float rounding.
func normalizeUserID(raw any) (string, error) {
	switch id := raw.(type) {
	case nil:
		return "", ErrUnauthenticated
	case string:
		if id == "" {
			return "", ErrUnauthenticated
		}
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", ErrUnauthenticated
	}
}
