// Package tokens issues and parses the opaque tokens that give a signatory access
// to their step of a signing process.
//
// Signatory tokens have the form sgn_<base58(random || mac)> where mac is a
// truncated HMAC-SHA256 binding the random part to the process and order index.
// Tokens issued before the prefixed format are bare UUIDv4 strings and are still
// accepted as legacy tokens.
package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const (
	Prefix = "sgn_"

	randomLen = 24
	macLen    = 8

	minSecretLen = 32
)

// Kind discriminates the supported token formats.
type Kind int

const (
	KindUnknown Kind = iota
	KindSignatory
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindSignatory:
		return "signatory"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

var (
	ErrMalformed       = errors.New("malformed signing token")
	ErrBindingMismatch = errors.New("signing token is not bound to this signatory")
	ErrSecretTooShort  = fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
)

// Token is a parsed token. Value is the exact string persisted on the signatory.
type Token struct {
	Kind  Kind
	Value string

	random []byte
	mac    []byte
}

// Issuer mints and verifies signatory tokens.
type Issuer struct {
	secret []byte
	rand   io.Reader
}

// NewIssuer creates an issuer using secret for the token binding.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	return &Issuer{secret: secret, rand: rand.Reader}, nil
}

// Issue returns a fresh token for the signatory at orderIndex of processID.
func (i *Issuer) Issue(processID uuid.UUID, orderIndex int) (string, error) {
	buf := make([]byte, randomLen, randomLen+macLen)
	if _, err := io.ReadFull(i.rand, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	buf = append(buf, i.bind(buf, processID, orderIndex)...)
	return Prefix + base58.Encode(buf), nil
}

// Verify checks that a signatory token was issued for processID and orderIndex.
// Legacy tokens carry no binding and always verify.
func (i *Issuer) Verify(tok Token, processID uuid.UUID, orderIndex int) error {
	switch tok.Kind {
	case KindLegacy:
		return nil
	case KindSignatory:
		if !hmac.Equal(tok.mac, i.bind(tok.random, processID, orderIndex)) {
			return ErrBindingMismatch
		}
		return nil
	default:
		return ErrMalformed
	}
}

func (i *Issuer) bind(random []byte, processID uuid.UUID, orderIndex int) []byte {
	h := hmac.New(sha256.New, i.secret)
	h.Write(processID[:])
	h.Write(binary.BigEndian.AppendUint32(nil, uint32(orderIndex)))
	h.Write(random)
	return h.Sum(nil)[:macLen]
}

// Parse classifies a token without touching storage.
func Parse(s string) (Token, error) {
	if rest, ok := strings.CutPrefix(s, Prefix); ok {
		raw, err := base58.Decode(rest)
		if err != nil || len(raw) != randomLen+macLen {
			return Token{}, ErrMalformed
		}
		return Token{
			Kind:   KindSignatory,
			Value:  s,
			random: raw[:randomLen],
			mac:    raw[randomLen:],
		}, nil
	}

	// Legacy tokens are stored in canonical lowercase form.
	if len(s) != 36 || s != strings.ToLower(s) {
		return Token{}, ErrMalformed
	}
	id, err := uuid.Parse(s)
	if err != nil || id.Version() != 4 {
		return Token{}, ErrMalformed
	}
	return Token{Kind: KindLegacy, Value: s}, nil
}
