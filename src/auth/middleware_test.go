package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, token string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestRequireToken(t *testing.T) {
	hashes := []string{mustHash(t, "first"), mustHash(t, "second")}

	var seen *Principal
	h := RequireToken(hashes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetPrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
		index  int
	}{
		{"missing header", "", http.StatusUnauthorized, -1},
		{"wrong scheme", "Basic second", http.StatusUnauthorized, -1},
		{"wrong token", "Bearer third", http.StatusUnauthorized, -1},
		{"second token", "Bearer second", http.StatusNoContent, 1},
		{"scheme is case insensitive", "bearer first", http.StatusNoContent, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/signals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.index < 0 {
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, tt.index, seen.TokenIndex)
		})
	}
}

func TestRequireTokenWithoutHashesRefusesAll(t *testing.T) {
	h := RequireToken(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/ticks", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHashToken(t *testing.T) {
	_, err := HashToken("  ")
	require.ErrorIs(t, err, ErrEmptyToken)

	hashed, err := HashToken("s3cret")
	require.NoError(t, err)
	assert.Equal(t, 0, Verify([]string{hashed}, "s3cret"))
	assert.Equal(t, -1, Verify([]string{hashed}, "other"))
}

func TestVerifierRemembersMatchedTokens(t *testing.T) {
	v := NewVerifier([]string{mustHash(t, "first"), mustHash(t, "second")})

	assert.Equal(t, 1, v.Verify("second"))
	assert.Equal(t, -1, v.Verify("third"))
	assert.Equal(t, -1, v.Verify(""))
	assert.Len(t, v.known, 1)

	// with the hashes gone only the remembered token still passes
	v.hashes = []string{"not-a-bcrypt-hash"}
	assert.Equal(t, 1, v.Verify("second"))
	assert.Equal(t, -1, v.Verify("first"))
	assert.Equal(t, -1, v.Verify("third"))
}

func TestVerifierCacheIsBounded(t *testing.T) {
	// bcrypt only reads the first 72 bytes, so every suffix below matches
	prefix := strings.Repeat("k", 72)
	v := NewVerifier([]string{mustHash(t, prefix)})

	for i := 0; i < maxKnownTokens+10; i++ {
		require.Equal(t, 0, v.Verify(fmt.Sprintf("%s-%d", prefix, i)))
	}
	assert.Len(t, v.known, maxKnownTokens)
}
