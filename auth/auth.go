// Package auth provides client credentials for Flight SQL connections.
//
// Two schemes are supported: a static bearer token, and a token obtained
// from a basic-auth handshake and cached for subsequent calls.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"google.golang.org/grpc/credentials"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when an authorization token is empty.
	ErrTokenIsEmpty = errors.New("authorization token is empty")
)

// HeaderAuthorization is the gRPC metadata key carrying credentials.
const HeaderAuthorization = "authorization"

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token from a "Bearer <token>" header.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}

// AuthorizationHeader formats token as a bearer authorization header value.
func AuthorizationHeader(token string) string {
	return bearerPrefix + token
}

// TokenCache holds a bearer token shared by concurrent calls.
// It implements credentials.PerRPCCredentials; calls made while the cache
// is empty carry no authorization header.
type TokenCache struct {
	mu         sync.RWMutex
	token      string
	requireTLS bool
}

var _ credentials.PerRPCCredentials = (*TokenCache)(nil)

// NewTokenCache returns an empty cache. Set requireTLS to refuse sending
// the token over plaintext connections.
func NewTokenCache(requireTLS bool) *TokenCache {
	return &TokenCache{requireTLS: requireTLS}
}

// Bearer returns credentials that always send token.
func Bearer(token string, requireTLS bool) *TokenCache {
	c := NewTokenCache(requireTLS)
	c.Set(token)
	return c
}

// Token returns the cached token, or "" if none.
func (c *TokenCache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Set replaces the cached token.
func (c *TokenCache) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Clear drops the cached token, forcing the owner to authenticate again.
func (c *TokenCache) Clear() {
	c.Set("")
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *TokenCache) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	token := c.Token()
	if token == "" {
		return nil, nil
	}
	return map[string]string{HeaderAuthorization: AuthorizationHeader(token)}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *TokenCache) RequireTransportSecurity() bool {
	return c.requireTLS
}
