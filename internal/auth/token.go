package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is the issuer of member tokens minted by cascadectl.
const DefaultIssuer = "cascadesign"

// MemberClaims are the claims of a member token.
type MemberClaims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
}

// IssueToken creates a signed member token.
// signingKeyPEM is the PEM-encoded ECDSA private key.
func IssueToken(signingKeyPEM, issuer string, member Member, ttl time.Duration) (string, error) {
	signingKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(signingKeyPEM))
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &MemberClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.MemberID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
		OrgID: member.OrgID.String(),
		Role:  string(member.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(signingKey)
}

// GenerateSigningKey returns a new P-256 key pair as PEM, for development setups.
func GenerateSigningKey() (privatePEM, publicPEM string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privatePEM, publicPEM, nil
}
