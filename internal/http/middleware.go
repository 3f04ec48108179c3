package http

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const requestMetadataContextKey contextKey = "request_metadata"

// RequestMetadata is what the signer routes record about the caller.
type RequestMetadata struct {
	ClientIP  string
	UserAgent string
}

// ExtractClientIP extracts the client IP address from the request.
// Checks X-Forwarded-For header first (for proxied requests), then X-Real-IP, finally RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	// Take the first IP in the list (comma-separated)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext extracts the client IP from the request context.
// This should be called from handlers wrapped by RequestMetadataMiddleware.
func ClientIPFromContext(ctx context.Context) string {
	return MetadataFromContext(ctx).ClientIP
}

// MetadataFromContext returns the request metadata stored by RequestMetadataMiddleware.
func MetadataFromContext(ctx context.Context) RequestMetadata {
	md, _ := ctx.Value(requestMetadataContextKey).(RequestMetadata)
	return md
}

// RequestMetadataMiddleware stores the client IP and user agent in the request context
// so they can be attached to signature evidence.
func RequestMetadataMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			md := RequestMetadata{
				ClientIP:  ExtractClientIP(r),
				UserAgent: r.UserAgent(),
			}
			ctx := context.WithValue(r.Context(), requestMetadataContextKey, md)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
