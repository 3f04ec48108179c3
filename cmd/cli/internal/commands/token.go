package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/eduzen/cascadesign/internal/auth"
)

type TokenCmd struct {
	OrgID      string        `help:"Organization ID" required:""`
	MemberID   string        `help:"Member ID, random when empty"`
	Role       string        `help:"Member role" default:"manager" enum:"admin,manager,viewer"`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	Issuer     string        `help:"Token issuer" default:"cascadesign" env:"CASCADE_JWT_ISSUER"`
	SigningKey string        `help:"PEM signing key, or a path to one" required:"" env:"CASCADE_SIGNING_KEY"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	key, err := readPEM(t.SigningKey)
	if err != nil {
		return err
	}

	member, err := memberFromFlags(t.OrgID, t.MemberID, t.Role)
	if err != nil {
		return err
	}

	token, err := auth.IssueToken(key, t.Issuer, member, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// KeygenCmd prints a new ES256 key pair for member tokens.
type KeygenCmd struct{}

func (k *KeygenCmd) Run() error {
	privPEM, pubPEM, err := auth.GenerateSigningKey()
	if err != nil {
		return err
	}

	fmt.Print(privPEM)
	fmt.Print(pubPEM)
	return nil
}
