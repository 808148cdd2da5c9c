package auth

import (
	"context"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Principal identifies the API token that authenticated a request.
type Principal struct {
	// TokenIndex is the position of the matching hash in API_TOKEN_HASHES.
	TokenIndex int
}

func GetPrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*Principal)
	return p, ok
}
