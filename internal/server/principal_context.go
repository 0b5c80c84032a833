package server

import (
	"context"
	"net/http"
	"strings"
)

// Principal is the authenticated caller as asserted by the fronting
// gateway. The gateway terminates authentication and forwards identity
// headers; this service trusts them the way it trusts the Host header.
type Principal struct {
	UserID   string
	RoleSlug string
}

const (
	headerAuthUser = "X-Auth-User"
	headerAuthRole = "X-Auth-Role"
)

type principalCtxKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalCtxKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func principalFromRequest(r *http.Request) (Principal, bool) {
	userID := strings.TrimSpace(r.Header.Get(headerAuthUser))
	if userID == "" {
		return Principal{}, false
	}
	return Principal{
		UserID:   userID,
		RoleSlug: strings.TrimSpace(r.Header.Get(headerAuthRole)),
	}, true
}
