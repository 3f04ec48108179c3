package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cascadev1 "github.com/eduzen/cascadesign/api/cascade/v1"
	"github.com/eduzen/cascadesign/internal/auth"
)

func TestLoadProcessConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
document: 0190a5b2-7c1e-7000-8000-000000000001
title: Convention de formation
expiresIn: 72h
signatories:
  - name: Alice Martin
    email: alice@example.com
    zone: trainee
  - name: Bob Durand
    email: bob@example.com
`), 0o600))

	cfg, err := loadProcessConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Convention de formation", cfg.Title)
	assert.Equal(t, 72*time.Hour, cfg.ExpiresIn)
	require.Len(t, cfg.Signatories, 2)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := cfg.request(now)
	assert.Equal(t, "0190a5b2-7c1e-7000-8000-000000000001", req.DocumentID)
	require.NotNil(t, req.ExpiresAt)
	assert.Equal(t, now.Add(72*time.Hour), *req.ExpiresAt)
	assert.Equal(t, []cascadev1.SignatoryInput{
		{Email: "alice@example.com", Name: "Alice Martin", OrderIndex: 0, ZoneID: "trainee"},
		{Email: "bob@example.com", Name: "Bob Durand", OrderIndex: 1},
	}, req.Signatories)
}

func TestLoadProcessConfig_NoExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process.yaml")
	require.NoError(t, os.WriteFile(path, []byte("document: abc\n"), 0o600))

	cfg, err := loadProcessConfig(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.request(time.Now()).ExpiresAt)
}

func TestMemberFromFlags(t *testing.T) {
	org := uuid.Must(uuid.NewV7())

	member, err := memberFromFlags(org.String(), "", "viewer")
	require.NoError(t, err)
	assert.Equal(t, org, member.OrgID)
	assert.NotEqual(t, uuid.Nil, member.MemberID)
	assert.Equal(t, auth.RoleViewer, member.Role)

	_, err = memberFromFlags("not-a-uuid", "", "viewer")
	assert.Error(t, err)

	_, err = memberFromFlags(org.String(), "nope", "viewer")
	assert.Error(t, err)
}

func TestReadPEM(t *testing.T) {
	privPEM, _, err := auth.GenerateSigningKey()
	require.NoError(t, err)

	got, err := readPEM(privPEM)
	require.NoError(t, err)
	assert.Equal(t, privPEM, got)

	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, []byte(privPEM), 0o600))
	got, err = readPEM(path)
	require.NoError(t, err)
	assert.Equal(t, privPEM, got)

	_, err = readPEM(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestClientFlags_TokenSource(t *testing.T) {
	flags := &ClientFlags{}
	_, err := flags.tokenSource()
	require.Error(t, err)

	flags.Token = "static"
	source, err := flags.tokenSource()
	require.NoError(t, err)
	token, _, err := source()
	require.NoError(t, err)
	assert.Equal(t, "static", token)
}

func TestPrintProcess(t *testing.T) {
	signed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &cascadev1.Process{
		ProcessID:        "p1",
		DocumentID:       "d1",
		Title:            "Convention",
		Status:           "partially_signed",
		CurrentPosition:  1,
		TotalSignatories: 2,
		Signatories: []*cascadev1.Signatory{
			{Name: "Alice", Email: "alice@example.com", OrderIndex: 0, SignedAt: &signed},
			{Name: "Bob", Email: "bob@example.com", OrderIndex: 1},
		},
	}

	var buf bytes.Buffer
	printProcess(&buf, p)
	out := buf.String()

	assert.Contains(t, out, "PARTIALLY_SIGNED (1/2 signed)")
	assert.Contains(t, out, "2026-03-01 10:00:00")
	assert.Contains(t, out, "waiting")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
