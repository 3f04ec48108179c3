package ssmcerts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"

	"github.com/eduzen/cascadesign/internal/pki"
)

type fakeSSM struct {
	params    map[string]string
	decrypted bool
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.decrypted = aws.ToBool(in.WithDecryption)
	v, ok := f.params[*in.Name]
	if !ok {
		return nil, &types.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func testMaterial(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	creds, err := pki.SelfSigned("EDUZEN Seal", "EDUZEN", time.Hour)
	require.NoError(t, err)
	certPEM, keyPEM, err = creds.EncodePEM()
	require.NoError(t, err)
	return certPEM, keyPEM
}

func TestLoad_SSM(t *testing.T) {
	certPEM, keyPEM := testMaterial(t)
	client := &fakeSSM{params: map[string]string{
		"/cascadesign/seal/cert": string(certPEM),
		"/cascadesign/seal/key":  string(keyPEM),
	}}

	m, err := Load(context.Background(), client, Config{CertSSM: "/cascadesign/seal/cert", KeySSM: "/cascadesign/seal/key"})
	require.NoError(t, err)
	require.True(t, client.decrypted)
	require.Equal(t, certPEM, m.Cert)

	creds, err := pki.ParseSealer(m.Cert, m.Key)
	require.NoError(t, err)
	require.Equal(t, "EDUZEN Seal", creds.Certificate.Subject.CommonName)

	_, err = m.TLSConfig()
	require.NoError(t, err)

	t.Run("missing parameter", func(t *testing.T) {
		_, err := Load(context.Background(), client, Config{CertSSM: "/cascadesign/seal/cert", KeySSM: "/missing"})
		var notFound *types.ParameterNotFound
		require.True(t, errors.As(err, &notFound))
	})

	t.Run("no client", func(t *testing.T) {
		_, err := Load(context.Background(), nil, Config{CertSSM: "/cascadesign/seal/cert"})
		require.Error(t, err)
	})
}

func TestLoad_Files(t *testing.T) {
	certPEM, keyPEM := testMaterial(t)
	dir := t.TempDir()
	cfg := Config{CertPath: filepath.Join(dir, "cert.pem"), KeyPath: filepath.Join(dir, "key.pem")}
	require.NoError(t, os.WriteFile(cfg.CertPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(cfg.KeyPath, keyPEM, 0o600))
	require.True(t, cfg.Configured())

	m, err := Load(context.Background(), nil, cfg)
	require.NoError(t, err)
	require.Equal(t, keyPEM, m.Key)

	_, err = Load(context.Background(), nil, Config{CertPath: filepath.Join(dir, "missing.pem")})
	require.Error(t, err)
	require.False(t, Config{}.Configured())
}
