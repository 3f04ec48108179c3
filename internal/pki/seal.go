// Package pki loads the certificate and key used to seal signed PDFs.
package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// id-kp-documentSigning, required by PDF signature validators.
var oidDocumentSigning = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 36}

// SealCredentials hold the organization seal applied to every PDF signature.
type SealCredentials struct {
	Key         crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate // Intermediates, leaf excluded
}

// LoadSealer loads seal credentials from PEM-encoded certificate and key files.
func LoadSealer(certPath, keyPath string) (*SealCredentials, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seal key file: %w", err)
	}

	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seal cert file: %w", err)
	}

	return ParseSealer(certData, keyData)
}

// ParseSealer parses seal credentials from PEM data.
// The certificate data may carry intermediates after the leaf certificate.
// The key may be PKCS#8, SEC 1 (EC) or PKCS#1 (RSA).
func ParseSealer(certPEM, keyPEM []byte) (*SealCredentials, error) {
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}

	certs, err := parseCertificates(certPEM)
	if err != nil {
		return nil, err
	}

	if err := verifyCertKeyPair(certs[0], key); err != nil {
		return nil, fmt.Errorf("seal key and certificate do not match: %w", err)
	}

	return &SealCredentials{
		Key:         key,
		Certificate: certs[0],
		Chain:       certs[1:],
	}, nil
}

// SelfSigned generates an ephemeral ECDSA P-256 seal for local development.
// Signatures made with it only verify when self-signed certificates are trusted.
func SelfSigned(commonName, organization string, validity time.Duration) (*SealCredentials, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate seal key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{organization},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		UnknownExtKeyUsage:    []asn1.ObjectIdentifier{oidDocumentSigning},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create seal certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seal certificate: %w", err)
	}

	return &SealCredentials{Key: key, Certificate: cert}, nil
}

// EncodePEM returns the certificate and PKCS#8 key of the credentials as PEM.
func (c *SealCredentials) EncodePEM() (certPEM, keyPEM []byte, err error) {
	keyDER, err := x509.MarshalPKCS8PrivateKey(c.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal seal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Certificate.Raw})
	for _, ic := range c.Chain {
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ic.Raw})...)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func parsePrivateKey(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode seal key PEM")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		return key, nil
	default:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
		return signer, nil
	}
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seal certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("failed to decode seal cert PEM")
	}
	return certs, nil
}

// verifyCertKeyPair checks that a certificate's public key matches a private key
func verifyCertKeyPair(cert *x509.Certificate, key crypto.Signer) error {
	type equaler interface {
		Equal(x crypto.PublicKey) bool
	}

	switch key.Public().(type) {
	case *ecdsa.PublicKey, *rsa.PublicKey, ed25519.PublicKey:
	default:
		return fmt.Errorf("unsupported key type %T", key.Public())
	}

	pub, ok := key.Public().(equaler)
	if !ok || !pub.Equal(cert.PublicKey) {
		return fmt.Errorf("public keys do not match")
	}
	return nil
}
