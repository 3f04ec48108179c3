package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded single", forwarded: "198.51.100.7", want: "198.51.100.7"},
		{name: "forwarded chain keeps the client", forwarded: "203.0.113.9, 10.0.0.2, 10.0.0.1", want: "203.0.113.9"},
		{name: "forwarded padded", forwarded: "  203.0.113.9 ,10.0.0.1", want: "203.0.113.9"},
		{name: "forwarded wins over real ip", forwarded: "203.0.113.9", realIP: "192.168.1.100", want: "203.0.113.9"},
		{name: "blank forwarded falls back to real ip", forwarded: " , 10.0.0.1", realIP: "192.168.1.100", want: "192.168.1.100"},
		{name: "real ip", realIP: " 192.168.1.100 ", want: "192.168.1.100"},
		{name: "remote ipv4", remoteAddr: "192.0.2.44:51234", want: "192.0.2.44"},
		{name: "remote ipv6", remoteAddr: "[2001:db8::7]:443", want: "2001:db8::7"},
		{name: "remote without port", remoteAddr: "unix-socket", want: "unix-socket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/sign/sgn_x", nil)
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.remoteAddr != "" {
				r.RemoteAddr = tt.remoteAddr
			}

			assert.Equal(t, tt.want, ExtractClientIP(r))
		})
	}
}

func TestRequestMetadataMiddleware(t *testing.T) {
	var got RequestMetadata
	handler := RequestMetadataMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = MetadataFromContext(r.Context())
		assert.Equal(t, got.ClientIP, ClientIPFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/sign/sgn_x", nil)
	r.Header.Set("X-Real-IP", "198.51.100.20")
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, RequestMetadata{ClientIP: "198.51.100.20", UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"}, got)
}

func TestMetadataFromContext_Missing(t *testing.T) {
	assert.Equal(t, RequestMetadata{}, MetadataFromContext(context.Background()))
	assert.Empty(t, ClientIPFromContext(context.Background()))
}
