package auth

import (
	"net/http"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// Resolver turns an incoming request into a tenant session. It verifies the
// bearer token first and then requires the session to still be registered,
// so a restarted server invalidates old tokens even though they would still
// verify in strict mode.
type Resolver struct {
	codec    *Codec
	registry *Registry
}

// NewResolver wires a codec and registry into a request resolver.
func NewResolver(codec *Codec, registry *Registry) *Resolver {
	return &Resolver{codec: codec, registry: registry}
}

// Codec exposes the token codec for login handlers.
func (rv *Resolver) Codec() *Codec { return rv.codec }

// Registry exposes the session registry for login handlers.
func (rv *Resolver) Registry() *Registry { return rv.registry }

// Resolve authenticates a request and returns its session.
func (rv *Resolver) Resolve(r *http.Request) (*Session, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := rv.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	return rv.registry.Lookup(claims.UserID)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.New(apperr.Unauthenticated, "missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperr.New(apperr.Unauthenticated, "malformed Authorization header")
	}
	return parts[1], nil
}
