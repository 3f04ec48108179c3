package commands

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func validServerCmd() *ServerCmd {
	return &ServerCmd{
		TokenSecret:    "token-secret-0123456789abcdef0123456789",
		EvidenceSecret: "evidence-secret-0123456789abcdef01234567",
		BlobSecret:     "blob-secret-0123456789abcdef0123456789ab",
		JWTPublicKey:   "-----BEGIN PUBLIC KEY-----",
		StoreType:      "memory",
		BlobType:       "memory",
		Mail:           MailFlags{Transport: "log", From: "noreply@eduzen.example"},
		Seal:           SealFlags{Cert: "seal.pem", Key: "seal.key"},
	}
}

func TestServerCmd_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *ServerCmd)
		wantErr string
	}{
		{name: "valid", modify: func(c *ServerCmd) {}},
		{
			name:    "short token secret",
			modify:  func(c *ServerCmd) { c.TokenSecret = "short" },
			wantErr: "token secret",
		},
		{
			name:    "memory blobs without their own secret",
			modify:  func(c *ServerCmd) { c.BlobSecret = "" },
			wantErr: "blob secret must be at least",
		},
		{
			name:    "blob secret reuses the token secret",
			modify:  func(c *ServerCmd) { c.BlobSecret = c.TokenSecret },
			wantErr: "must differ",
		},
		{
			name: "s3 blobs need no blob secret",
			modify: func(c *ServerCmd) {
				c.BlobType, c.BlobSecret = "s3", ""
				c.S3.Bucket = "eduzen-documents"
			},
		},
		{
			name:    "s3 without bucket",
			modify:  func(c *ServerCmd) { c.BlobType = "s3" },
			wantErr: "S3 bucket",
		},
		{
			name:    "missing seal",
			modify:  func(c *ServerCmd) { c.Seal = SealFlags{} },
			wantErr: "seal certificate",
		},
		{
			name:    "sendgrid without key",
			modify:  func(c *ServerCmd) { c.Mail.Transport = "sendgrid" },
			wantErr: "SendGrid",
		},
		{
			name:    "development skips checks",
			modify:  func(c *ServerCmd) { *c = ServerCmd{Development: true} },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServerCmd()
			tt.modify(c)

			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestServerCmd_DevelopmentDefaults(t *testing.T) {
	c := &ServerCmd{Development: true, JWTPublicKey: "-----BEGIN PUBLIC KEY-----"}
	require.NoError(t, c.developmentDefaults(zerolog.Nop()))

	require.GreaterOrEqual(t, len(c.BlobSecret), minSecretLen)
	require.NotEqual(t, c.TokenSecret, c.BlobSecret)
	require.NotEqual(t, c.EvidenceSecret, c.BlobSecret)
}
