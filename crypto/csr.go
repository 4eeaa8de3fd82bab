package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"

	"github.com/sidesign/ipasign/ipaerr"
)

// GenerateRSAKeypair generates an RSA private key of the given bit size
// (spec.md §4.1 default 2048).
func GenerateRSAKeypair(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = 2048
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, ipaerr.Wrap("crypto.GenerateRSAKeypair", ipaerr.KindKeygenFailed, err)
	}
	return key, nil
}

// BuildCSR builds a PKCS#10 certificate signing request for commonName,
// subject "CN=<commonName>, C=US", signed with SHA-256, and returns it PEM
// encoded.
func BuildCSR(key *rsa.PrivateKey, commonName string) ([]byte, error) {
	const op = "crypto.BuildCSR"

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: commonName,
			Country:    []string{"US"},
		},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, &template, key)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindKeygenFailed, err)
	}

	block := &pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der}
	return pem.EncodeToMemory(block), nil
}
