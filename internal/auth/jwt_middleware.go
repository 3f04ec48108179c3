package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrUnauthenticated is returned when a request carries no valid member token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Member is an authenticated organization member.
// This is added to the request context after successful JWT verification.
type Member struct {
	MemberID uuid.UUID
	OrgID    uuid.UUID
	Role     Role
}

type contextKey int

const (
	memberContextKey contextKey = iota
)

// WithMember returns a context carrying member.
func WithMember(ctx context.Context, member *Member) context.Context {
	return context.WithValue(ctx, memberContextKey, member)
}

// MemberFromContext extracts the authenticated member from the request context.
// Returns nil if no member is present (unauthenticated request).
func MemberFromContext(ctx context.Context) *Member {
	member, _ := ctx.Value(memberContextKey).(*Member)
	return member
}

// Verifier checks ES256 member tokens.
type Verifier struct {
	publicKey *ecdsa.PublicKey
	issuer    string
}

// NewVerifierFromPEM creates a verifier accepting tokens signed by the key
// matching publicKeyPEM and issued by issuer.
func NewVerifierFromPEM(publicKeyPEM, issuer string) (*Verifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}

	publicKey, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Verifier{publicKey: publicKey, issuer: issuer}, nil
}

// Verify validates a token and returns the member it identifies.
func (v *Verifier) Verify(tokenString string) (*Member, error) {
	claims := &MemberClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodES256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	memberID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject: %w", ErrUnauthenticated, err)
	}

	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid org_id claim: %w", ErrUnauthenticated, err)
	}

	role := Role(claims.Role)
	if _, ok := RolePermissions[role]; !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, claims.Role)
	}

	return &Member{MemberID: memberID, OrgID: orgID, Role: role}, nil
}

// Middleware returns an HTTP middleware that verifies member JWTs.
// Requests without a valid token are rejected with 401.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				log.Warn().Str("path", r.URL.Path).Msg("Missing Authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			member, err := v.Verify(tokenString)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to verify member JWT")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			log.Debug().
				Str("member_id", member.MemberID.String()).
				Str("org_id", member.OrgID.String()).
				Str("role", string(member.Role)).
				Msg("Member authenticated")

			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), member)))
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// ParsePublicKeyPEM parses a PEM-encoded ECDSA public key.
func ParsePublicKeyPEM(pemStr string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}

	return ecdsaPub, nil
}
