package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/eduzen/cascadesign/internal/auth"
)

// refreshMargin is how long before expiry a minted token is replaced.
const refreshMargin = 5 * time.Minute

// TokenSource returns a bearer token and its expiry. A zero expiry never expires.
type TokenSource func() (string, time.Time, error)

// StaticToken returns a source for a token obtained out of band.
func StaticToken(token string) TokenSource {
	return func() (string, time.Time, error) {
		if token == "" {
			return "", time.Time{}, errors.New("no member token configured")
		}
		return token, time.Time{}, nil
	}
}

// SigningKeyToken mints member tokens with a local signing key, for operators
// holding the server's key.
func SigningKeyToken(signingKeyPEM, issuer string, member auth.Member, ttl time.Duration) TokenSource {
	return func() (string, time.Time, error) {
		expiry := time.Now().Add(ttl)
		token, err := auth.IssueToken(signingKeyPEM, issuer, member, ttl)
		return token, expiry, err
	}
}

// AuthInterceptor adds member authentication to Connect RPC requests.
type AuthInterceptor struct {
	source TokenSource

	// Token caching
	mu          sync.RWMutex
	cachedToken string
	tokenExpiry time.Time
}

// NewAuthInterceptor creates an interceptor that authenticates requests with source.
func NewAuthInterceptor(source TokenSource) *AuthInterceptor {
	return &AuthInterceptor{source: source}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		token, err := i.getToken()
		if err != nil {
			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		}
		req.Header().Set("Authorization", "Bearer "+token)
		return next(ctx, req)
	}
}

// WrapStreamingClient is a no-op, the member API is unary only.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler is not used for client interceptors.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func (i *AuthInterceptor) valid() bool {
	if i.cachedToken == "" {
		return false
	}
	return i.tokenExpiry.IsZero() || time.Now().Add(refreshMargin).Before(i.tokenExpiry)
}

// getToken returns a cached token or fetches a new one.
func (i *AuthInterceptor) getToken() (string, error) {
	i.mu.RLock()
	if i.valid() {
		token := i.cachedToken
		i.mu.RUnlock()
		return token, nil
	}
	i.mu.RUnlock()

	i.mu.Lock()
	defer i.mu.Unlock()

	// Double-check after acquiring write lock
	if i.valid() {
		return i.cachedToken, nil
	}

	token, expiry, err := i.source()
	if err != nil {
		return "", err
	}

	i.cachedToken = token
	i.tokenExpiry = expiry

	log.Debug().Time("expiry", expiry).Msg("cached new member token")

	return token, nil
}
