package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func generateECKeyPair(t *testing.T) (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func createSignedToken(t *testing.T, privateKey *ecdsa.PrivateKey, claims *MemberClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenStr, err := token.SignedString(privateKey)
	require.NoError(t, err)
	return tokenStr
}

func generatePublicKeyPEM(t *testing.T, publicKey *ecdsa.PublicKey) string {
	t.Helper()
	publicKeyDER, err := x509.MarshalPKIXPublicKey(publicKey)
	require.NoError(t, err)

	publicKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyDER,
	})
	require.NotNil(t, publicKeyPEM)
	return string(publicKeyPEM)
}

func validClaims(memberID, orgID uuid.UUID) *MemberClaims {
	now := time.Now()
	return &MemberClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID.String(),
			Issuer:    DefaultIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		OrgID: orgID.String(),
		Role:  string(RoleManager),
	}
}

func TestNewVerifierFromPEM(t *testing.T) {
	t.Run("empty public key", func(t *testing.T) {
		v, err := NewVerifierFromPEM("", DefaultIssuer)
		require.Error(t, err)
		require.Nil(t, v)
		require.Equal(t, "JWT public key not provided", err.Error())
	})

	t.Run("invalid PEM", func(t *testing.T) {
		v, err := NewVerifierFromPEM("invalid pem", DefaultIssuer)
		require.Error(t, err)
		require.Nil(t, v)
	})

	t.Run("valid public key", func(t *testing.T) {
		_, pub := generateECKeyPair(t)
		v, err := NewVerifierFromPEM(generatePublicKeyPEM(t, pub), DefaultIssuer)
		require.NoError(t, err)
		require.NotNil(t, v)
	})
}

func TestVerifier_Verify(t *testing.T) {
	priv, pub := generateECKeyPair(t)
	otherPriv, _ := generateECKeyPair(t)

	v, err := NewVerifierFromPEM(generatePublicKeyPEM(t, pub), DefaultIssuer)
	require.NoError(t, err)

	memberID := uuid.Must(uuid.NewV7())
	orgID := uuid.Must(uuid.NewV7())

	tests := []struct {
		name    string
		key     *ecdsa.PrivateKey
		mutate  func(c *MemberClaims)
		wantErr bool
	}{
		{name: "valid token", key: priv},
		{name: "signed by another key", key: otherPriv, wantErr: true},
		{
			name:    "expired",
			key:     priv,
			mutate:  func(c *MemberClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) },
			wantErr: true,
		},
		{
			name:    "missing expiry",
			key:     priv,
			mutate:  func(c *MemberClaims) { c.ExpiresAt = nil },
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			key:     priv,
			mutate:  func(c *MemberClaims) { c.Issuer = "someone-else" },
			wantErr: true,
		},
		{
			name:    "subject not a uuid",
			key:     priv,
			mutate:  func(c *MemberClaims) { c.Subject = "alice" },
			wantErr: true,
		},
		{
			name:    "missing org",
			key:     priv,
			mutate:  func(c *MemberClaims) { c.OrgID = "" },
			wantErr: true,
		},
		{
			name:    "unknown role",
			key:     priv,
			mutate:  func(c *MemberClaims) { c.Role = "owner" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims(memberID, orgID)
			if tt.mutate != nil {
				tt.mutate(claims)
			}

			member, err := v.Verify(createSignedToken(t, tt.key, claims))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnauthenticated)
				require.Nil(t, member)
				return
			}

			require.NoError(t, err)
			require.Equal(t, memberID, member.MemberID)
			require.Equal(t, orgID, member.OrgID)
			require.Equal(t, RoleManager, member.Role)
		})
	}

	t.Run("HS256 rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(memberID, orgID))
		tokenStr, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = v.Verify(tokenStr)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestIssueToken(t *testing.T) {
	privPEM, pubPEM, err := GenerateSigningKey()
	require.NoError(t, err)

	v, err := NewVerifierFromPEM(pubPEM, DefaultIssuer)
	require.NoError(t, err)

	want := Member{MemberID: uuid.Must(uuid.NewV7()), OrgID: uuid.Must(uuid.NewV7()), Role: RoleViewer}
	token, err := IssueToken(privPEM, DefaultIssuer, want, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, want, *got)

	_, err = IssueToken("not a key", DefaultIssuer, want, time.Hour)
	require.Error(t, err)
}

func TestVerifier_Middleware(t *testing.T) {
	privPEM, pubPEM, err := GenerateSigningKey()
	require.NoError(t, err)

	v, err := NewVerifierFromPEM(pubPEM, DefaultIssuer)
	require.NoError(t, err)

	member := Member{MemberID: uuid.Must(uuid.NewV7()), OrgID: uuid.Must(uuid.NewV7()), Role: RoleAdmin}
	token, err := IssueToken(privPEM, DefaultIssuer, member, time.Hour)
	require.NoError(t, err)

	var seen *Member
	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MemberFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid bearer", header: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + token, wantStatus: http.StatusNoContent},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/cascade.v1.ProcessService/GetProcess", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				require.NotNil(t, seen)
				require.Equal(t, member, *seen)
			} else {
				require.Nil(t, seen)
			}
		})
	}
}
