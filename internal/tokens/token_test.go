package tokens

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-min-32-bytes-long")

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer([]byte("short"))
	require.ErrorIs(t, err, ErrSecretTooShort)

	_, err = NewIssuer(testSecret)
	require.NoError(t, err)
}

func TestIssueParseVerify(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	require.NoError(t, err)

	processID := uuid.Must(uuid.NewV7())
	token, err := issuer.Issue(processID, 1)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(token, Prefix))

	tok, err := Parse(token)
	require.NoError(t, err)
	require.Equal(t, KindSignatory, tok.Kind)
	require.Equal(t, token, tok.Value)

	require.NoError(t, issuer.Verify(tok, processID, 1))
	require.ErrorIs(t, issuer.Verify(tok, processID, 0), ErrBindingMismatch)
	require.ErrorIs(t, issuer.Verify(tok, uuid.Must(uuid.NewV7()), 1), ErrBindingMismatch)

	other, err := NewIssuer([]byte("another-secret-key-min-32-bytes-long"))
	require.NoError(t, err)
	require.ErrorIs(t, other.Verify(tok, processID, 1), ErrBindingMismatch)
}

func TestIssueUnique(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	require.NoError(t, err)

	processID := uuid.Must(uuid.NewV7())
	seen := make(map[string]struct{})
	for range 1000 {
		token, err := issuer.Issue(processID, 0)
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		token string
		kind  Kind
		err   error
	}{
		{name: "legacy uuid v4", token: "1b4e28ba-2fa1-41d2-883f-0016d3cca427", kind: KindLegacy},
		{name: "uppercase uuid", token: "1B4E28BA-2FA1-41D2-883F-0016D3CCA427", err: ErrMalformed},
		{name: "uuid v7", token: uuid.Must(uuid.NewV7()).String(), err: ErrMalformed},
		{name: "empty", token: "", err: ErrMalformed},
		{name: "prefix only", token: Prefix, err: ErrMalformed},
		{name: "bad base58", token: Prefix + "0OIl", err: ErrMalformed},
		{name: "short payload", token: Prefix + "3mJr7AoUXx2Wqd", err: ErrMalformed},
		{name: "path traversal", token: "../../etc/passwd", err: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := Parse(tt.token)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.kind, tok.Kind)
			require.Equal(t, tt.token, tok.Value)
		})
	}
}

func TestVerifyLegacy(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	require.NoError(t, err)

	tok, err := Parse("1b4e28ba-2fa1-41d2-883f-0016d3cca427")
	require.NoError(t, err)
	require.NoError(t, issuer.Verify(tok, uuid.Must(uuid.NewV7()), 3))
	require.ErrorIs(t, issuer.Verify(Token{}, uuid.Nil, 0), ErrMalformed)
}
