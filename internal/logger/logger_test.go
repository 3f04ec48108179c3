package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/sign/sgn_4Yx9abc", "/sign/{token}"},
		{"/sign/sgn_4Yx9abc/document", "/sign/{token}/document"},
		{"/sign/", "/sign/"},
		{"/health", "/health"},
		{"/cascade.v1.ProcessService/GetProcess", "/cascade.v1.ProcessService/GetProcess"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, redactPath(tt.path))
		})
	}
}

func TestHTTPRequests(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := HTTPRequests(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusGone)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign/sgn_secret", nil))
	require.Equal(t, http.StatusGone, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))

	assert.Equal(t, "/sign/{token}", inner["path"])
	assert.Equal(t, "http request", access["message"])
	assert.Equal(t, float64(http.StatusGone), access["status"])
	assert.NotContains(t, buf.String(), "sgn_secret")
}
