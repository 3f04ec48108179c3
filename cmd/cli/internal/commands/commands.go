package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/google/uuid"

	"github.com/eduzen/cascadesign/internal/auth"
	"github.com/eduzen/cascadesign/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags configure the member API client and how it authenticates.
type ClientFlags struct {
	Server     string        `help:"Server URL" default:"http://localhost:8080" env:"CASCADE_SERVER"`
	Token      string        `help:"member token sent as bearer" env:"CASCADE_TOKEN"`
	SigningKey string        `help:"PEM signing key, or a path to one, used to mint member tokens" env:"CASCADE_SIGNING_KEY"`
	Issuer     string        `help:"issuer of minted member tokens" default:"cascadesign" env:"CASCADE_JWT_ISSUER"`
	OrgID      string        `help:"organization of minted member tokens" env:"CASCADE_ORG_ID"`
	MemberID   string        `help:"member ID of minted member tokens, random when empty" env:"CASCADE_MEMBER_ID"`
	Role       string        `help:"role of minted member tokens" default:"manager" enum:"admin,manager,viewer"`
	Timeout    time.Duration `help:"request timeout" default:"30s"`
}

func (f *ClientFlags) tokenSource() (client.TokenSource, error) {
	if f.Token != "" {
		return client.StaticToken(f.Token), nil
	}
	if f.SigningKey == "" {
		return nil, errors.New("either --token or --signing-key is required")
	}

	key, err := readPEM(f.SigningKey)
	if err != nil {
		return nil, err
	}
	member, err := memberFromFlags(f.OrgID, f.MemberID, f.Role)
	if err != nil {
		return nil, err
	}
	return client.SigningKeyToken(key, f.Issuer, member, time.Hour), nil
}

func (f *ClientFlags) clients(globals *Globals) (*client.Clients, error) {
	source, err := f.tokenSource()
	if err != nil {
		return nil, err
	}

	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	config := client.Config{
		ServerURL: f.Server,
		Timeout:   f.Timeout,
		Debug:     globals.Debug,
	}
	return client.NewClients(config,
		connect.WithInterceptors(otelInterceptor, client.NewAuthInterceptor(source)),
	), nil
}

func memberFromFlags(orgID, memberID, role string) (auth.Member, error) {
	org, err := uuid.Parse(orgID)
	if err != nil {
		return auth.Member{}, fmt.Errorf("invalid organization ID %q: %w", orgID, err)
	}

	member := uuid.Must(uuid.NewV7())
	if memberID != "" {
		if member, err = uuid.Parse(memberID); err != nil {
			return auth.Member{}, fmt.Errorf("invalid member ID %q: %w", memberID, err)
		}
	}

	return auth.Member{MemberID: member, OrgID: org, Role: auth.Role(role)}, nil
}

// readPEM returns value when it already holds PEM data, otherwise the content of the file it names.
func readPEM(value string) (string, error) {
	if strings.HasPrefix(strings.TrimSpace(value), "-----BEGIN") {
		return value, nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("failed to read signing key: %w", err)
	}
	return string(data), nil
}
