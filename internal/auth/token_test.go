// ABOUTME: Unit tests for access token normalisation and expiry extraction
// ABOUTME: Covers quoting, bearer prefixes, placeholder literals and JWT exp claims

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "abc.def", "abc.def"},
		{"whitespace", "  abc  ", "abc"},
		{"double quoted", `"abc"`, "abc"},
		{"single quoted", `'abc'`, "abc"},
		{"mismatched quotes kept", `"abc'`, `"abc'`},
		{"bearer prefix", "Bearer abc", "abc"},
		{"lower bearer prefix", "bearer abc", "abc"},
		{"quoted bearer", `"Bearer abc"`, "abc"},
		{"bearer tab", "Bearer\tabc", "abc"},
		{"bearer newline", "Bearer\nabc", "abc"},
		{"bearer spaces", "BEARER   abc", "abc"},
		{"bearer word kept", "Bearerabc", "Bearerabc"},
		{"bearer only", "Bearer", "Bearer"},
		{"empty", "", ""},
		{"undefined", "undefined", ""},
		{"null", "null", ""},
		{"quoted null", `"null"`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeToken(tt.raw); got != tt.want {
				t.Errorf("NormalizeToken(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeTokenType(t *testing.T) {
	tests := map[string]string{
		"":        "Bearer",
		"bearer":  "Bearer",
		"BEARER":  "Bearer",
		" Bearer": "Bearer",
		"Token":   "token",
		"MAC":     "mac",
	}
	for raw, want := range tests {
		if got := NormalizeTokenType(raw); got != want {
			t.Errorf("NormalizeTokenType(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestAuthHeader(t *testing.T) {
	if got := AuthHeader("bearer", `"abc"`); got != "Bearer abc" {
		t.Errorf("AuthHeader() = %q, want %q", got, "Bearer abc")
	}
	if got := AuthHeader("Token", "xyz"); got != "token xyz" {
		t.Errorf("AuthHeader() = %q, want %q", got, "token xyz")
	}
	if got := AuthHeader("bearer", "undefined"); got != "" {
		t.Errorf("AuthHeader() = %q, want empty", got)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("jwt with exp", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"sub": "admin", "exp": exp.Unix()})
		got := TokenExpiry("Bearer " + token)
		if !got.Equal(exp) {
			t.Errorf("TokenExpiry() = %v, want %v", got, exp)
		}
	})

	t.Run("already expired jwt still reports exp", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		token := signedToken(t, jwt.MapClaims{"exp": past.Unix()})
		if got := TokenExpiry(token); !got.Equal(past) {
			t.Errorf("TokenExpiry() = %v, want %v", got, past)
		}
	})

	t.Run("jwt without exp", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"sub": "admin"})
		if got := TokenExpiry(token); !got.IsZero() {
			t.Errorf("TokenExpiry() = %v, want zero", got)
		}
	})

	t.Run("opaque token", func(t *testing.T) {
		if got := TokenExpiry("not-a-jwt"); !got.IsZero() {
			t.Errorf("TokenExpiry() = %v, want zero", got)
		}
	})
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	soon := now.Add(30 * time.Minute)
	token := signedToken(t, jwt.MapClaims{"exp": soon.Unix()})
	if got := SessionExpiry(now, 12*time.Hour, token); !got.Equal(soon) {
		t.Errorf("SessionExpiry() = %v, want token exp %v", got, soon)
	}

	late := signedToken(t, jwt.MapClaims{"exp": now.Add(48 * time.Hour).Unix()})
	if got := SessionExpiry(now, 12*time.Hour, late); !got.Equal(now.Add(12 * time.Hour)) {
		t.Errorf("SessionExpiry() = %v, want configured cap", got)
	}

	if got := SessionExpiry(now, time.Hour, "opaque"); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("SessionExpiry() = %v, want %v", got, now.Add(time.Hour))
	}
}
