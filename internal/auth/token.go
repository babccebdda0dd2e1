// ABOUTME: Backend access token normalisation and Authorization header building
// ABOUTME: Reads the token exp claim without verification to bound session lifetime

package auth

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

// NormalizeToken cleans up an access token as returned by the backend.
// Surrounding whitespace, one pair of matching quotes and a leading "Bearer"
// prefix followed by any whitespace are removed. Tokens that normalise to
// nothing, or to the literals "undefined" or "null", yield "".
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) >= 2 {
		first, last := token[0], token[len(token)-1]
		if (first == '"' || first == '\'') && first == last {
			token = strings.TrimSpace(token[1 : len(token)-1])
		}
	}
	if len(token) > 6 && strings.EqualFold(token[:6], "bearer") {
		if r, _ := utf8.DecodeRuneInString(token[6:]); unicode.IsSpace(r) {
			token = strings.TrimSpace(token[6:])
		}
	}
	switch token {
	case "", "undefined", "null":
		return ""
	}
	return token
}

// NormalizeTokenType returns the token type to use in the Authorization
// header. It defaults to "Bearer".
func NormalizeTokenType(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" || strings.EqualFold(t, "bearer") {
		return "Bearer"
	}
	return strings.ToLower(t)
}

// AuthHeader builds "<Type> <token>", or "" when there is no usable token.
func AuthHeader(tokenType, token string) string {
	token = NormalizeToken(token)
	if token == "" {
		return ""
	}
	return NormalizeTokenType(tokenType) + " " + token
}

// TokenExpiry returns the exp claim of a JWT access token, or the zero time
// when the token is not a JWT or carries no exp. The signature is not
// checked: the portal does not hold the backend's signing key and only uses
// exp to avoid keeping a session alive past its token.
func TokenExpiry(token string) time.Time {
	token = NormalizeToken(token)
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// SessionExpiry is the earlier of now+maxAge and the token's own expiry.
func SessionExpiry(now time.Time, maxAge time.Duration, token string) time.Time {
	expires := now.Add(maxAge)
	if exp := TokenExpiry(token); !exp.IsZero() && exp.Before(expires) {
		return exp
	}
	return expires
}
