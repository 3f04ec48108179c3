// Package ssmcerts loads PEM certificate material from files or AWS SSM Parameter Store.
package ssmcerts

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterAPI is the subset of the SSM client used to read parameters.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Material holds a certificate chain and its private key in memory
type Material struct {
	Cert []byte
	Key  []byte
}

// Config for loading a certificate and key
type Config struct {
	// File paths (for local development)
	CertPath string
	KeyPath  string

	// SSM parameter names (for production)
	CertSSM string
	KeySSM  string
}

// Configured reports whether either source is set.
func (c Config) Configured() bool {
	return c.CertSSM != "" || c.CertPath != ""
}

// Load loads the material from SSM when parameter names are set, otherwise from files.
func Load(ctx context.Context, client ParameterAPI, cfg Config) (*Material, error) {
	if cfg.CertSSM != "" {
		if client == nil {
			return nil, errors.New("SSM client is required to load certificates from SSM")
		}
		return loadFromSSM(ctx, client, cfg)
	}

	return loadFromFiles(cfg)
}

// loadFromSSM loads the material from AWS SSM Parameter Store
func loadFromSSM(ctx context.Context, client ParameterAPI, cfg Config) (*Material, error) {
	cert, err := getParameter(ctx, client, cfg.CertSSM)
	if err != nil {
		return nil, fmt.Errorf("failed to load cert from SSM: %w", err)
	}

	key, err := getParameter(ctx, client, cfg.KeySSM)
	if err != nil {
		return nil, fmt.Errorf("failed to load key from SSM: %w", err)
	}

	return &Material{Cert: []byte(cert), Key: []byte(key)}, nil
}

// loadFromFiles loads the material from file paths
func loadFromFiles(cfg Config) (*Material, error) {
	cert, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert: %w", err)
	}

	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	return &Material{Cert: cert, Key: key}, nil
}

// getParameter fetches a parameter from SSM
func getParameter(ctx context.Context, client ParameterAPI, name string) (string, error) {
	output, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if output.Parameter == nil || output.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *output.Parameter.Value, nil
}

// TLSConfig creates a server tls.Config from the material
func (m *Material) TLSConfig() (*tls.Config, error) {
	cert, err := tls.X509KeyPair(m.Cert, m.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
