package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/eduzen/cascadesign/internal/models"
)

type integrityPayload struct {
	SignerEmail   string                   `json:"signer_email"`
	SignatureData string                   `json:"signature_data"`
	Metadata      models.SignatureMetadata `json:"metadata"`
}

// IntegrityHash returns the hex HMAC-SHA256 sealing an evidence record: the
// signer email, the submitted signature image and the submission metadata.
func IntegrityHash(secret []byte, signerEmail, signatureData string, md models.SignatureMetadata) (string, error) {
	payload, err := json.Marshal(integrityPayload{
		SignerEmail:   signerEmail,
		SignatureData: signatureData,
		Metadata:      md,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode evidence: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyIntegrity recomputes the integrity hash of e.
func VerifyIntegrity(secret []byte, e *models.Evidence, signatureData string) bool {
	want, err := IntegrityHash(secret, e.SignerEmail, signatureData, e.Metadata)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(e.IntegrityHash))
}
