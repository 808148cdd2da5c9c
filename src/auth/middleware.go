package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"
)

var ErrEmptyToken = errors.New("token is empty")

// HashToken returns the bcrypt hash to put in API_TOKEN_HASHES.
func HashToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrEmptyToken
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify returns the index of the hash matching token, or -1.
func Verify(hashes []string, token string) int {
	if token == "" {
		return -1
	}
	for i, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(token)) == nil {
			return i
		}
	}
	return -1
}

// maxKnownTokens bounds the verified-token cache. Tokens longer than 72
// bytes share a bcrypt prefix, so distinct matching tokens are not limited
// by the number of hashes alone.
const maxKnownTokens = 64

// Verifier checks tokens against bcrypt hashes once and then answers from a
// cache of token digests, keeping bcrypt off hot paths like POST /ticks.
// Failed checks are never cached.
type Verifier struct {
	hashes []string

	mu    sync.RWMutex
	known map[[blake2b.Size256]byte]int
}

func NewVerifier(hashes []string) *Verifier {
	return &Verifier{
		hashes: hashes,
		known:  make(map[[blake2b.Size256]byte]int),
	}
}

// Verify returns the index of the hash matching token, or -1.
func (v *Verifier) Verify(token string) int {
	if token == "" {
		return -1
	}
	key := blake2b.Sum256([]byte(token))

	v.mu.RLock()
	idx, ok := v.known[key]
	v.mu.RUnlock()
	if ok {
		return idx
	}

	idx = Verify(v.hashes, token)
	if idx >= 0 {
		v.mu.Lock()
		if len(v.known) < maxKnownTokens {
			v.known[key] = idx
		}
		v.mu.Unlock()
	}
	return idx
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireToken rejects requests without a bearer token matching one of the
// hashes. With no hashes configured every request is rejected.
func RequireToken(hashes []string) func(http.Handler) http.Handler {
	if len(hashes) == 0 {
		logger.Warn("no API token hashes configured, protected routes will refuse all requests")
	}

	verifier := NewVerifier(hashes)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idx := verifier.Verify(bearerToken(r))
			if idx < 0 {
				logger.WithFields(map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).Warn("unauthorized request")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, &Principal{TokenIndex: idx})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
