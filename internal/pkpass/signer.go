package pkpass

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/smallstep/pkcs7"
)

// Signer produces a detached DER signature over manifest bytes. A failing
// Signer aborts the whole archive build; an unsigned archive is never
// emitted.
type Signer interface {
	Sign(manifest []byte) ([]byte, error)
}

// PKCS7Signer signs manifests with an issuer certificate and private key,
// attaching the platform intermediate certificate to the chain so devices
// can validate back to the platform root.
type PKCS7Signer struct {
	cert          *x509.Certificate
	key           crypto.PrivateKey
	intermediates []*x509.Certificate
}

func NewPKCS7Signer(cert *x509.Certificate, key crypto.PrivateKey, intermediates ...*x509.Certificate) *PKCS7Signer {
	return &PKCS7Signer{
		cert:          cert,
		key:           key,
		intermediates: intermediates,
	}
}

// LoadPKCS7Signer reads the signing certificate, its private key and the
// platform intermediate certificate from PEM files. keyPassword decrypts
// legacy encrypted PEM keys and may be empty for unencrypted keys.
func LoadPKCS7Signer(certPath, keyPath, keyPassword, intermediatePath string) (*PKCS7Signer, error) {
	cert, err := loadCertificate(certPath)
	if err != nil {
		return nil, fmt.Errorf("signer certificate: %w", err)
	}
	key, err := loadPrivateKey(keyPath, keyPassword)
	if err != nil {
		return nil, fmt.Errorf("signer key: %w", err)
	}
	var intermediates []*x509.Certificate
	if intermediatePath != "" {
		wwdr, err := loadCertificate(intermediatePath)
		if err != nil {
			return nil, fmt.Errorf("intermediate certificate: %w", err)
		}
		intermediates = append(intermediates, wwdr)
	}
	return NewPKCS7Signer(cert, key, intermediates...), nil
}

func (s *PKCS7Signer) Sign(manifest []byte) ([]byte, error) {
	signed, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, fmt.Errorf("initializing signature: %w", err)
	}
	signed.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := signed.AddSignerChain(s.cert, s.key, s.intermediates, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("adding signer chain: %w", err)
	}
	signed.Detach()
	der, err := signed.Finish()
	if err != nil {
		return nil, fmt.Errorf("finishing signature: %w", err)
	}
	return der, nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("%s contains no certificate", path)
		}
		if block.Type == "CERTIFICATE" {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}

func loadPrivateKey(path, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("%s contains no private key", path)
		}
		switch block.Type {
		case "RSA PRIVATE KEY", "EC PRIVATE KEY", "PRIVATE KEY":
			return parsePrivateKey(block, password)
		}
	}
}

func parsePrivateKey(block *pem.Block, password string) (crypto.PrivateKey, error) {
	der := block.Bytes
	// openssl historically emits password protected keys as encrypted PEM.
	//nolint:staticcheck
	if x509.IsEncryptedPEMBlock(block) {
		var err error
		//nolint:staticcheck
		der, err = x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unsupported private key format")
}
