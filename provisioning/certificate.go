package provisioning

import (
	"context"
	"crypto/x509"
	"encoding/pem"

	ipacrypto "github.com/sidesign/ipasign/crypto"
	"github.com/sidesign/ipasign/ipaerr"
)

// Certificate is a developer certificate as returned by list_certificates
// and create_certificate, per spec.md §4.6.
type Certificate struct {
	SerialNumber string
	Name         string
	Fields       *ipacrypto.CertificateFields
	PrivateKeyDER []byte // only populated by CreateCertificate
	CertificateDER []byte
}

// ListCertificates returns the team's development certificates.
func (c *Client) ListCertificates(ctx context.Context) ([]Certificate, error) {
	const op = "provisioning.ListCertificates"

	result, err := c.do(ctx, op, listCertificatesPath, nil)
	if err != nil {
		return nil, err
	}

	raw, _ := result["certRequests"].([]interface{})
	certs := make([]Certificate, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		cert, err := certFromResponse(m)
		if err != nil {
			continue
		}
		certs = append(certs, *cert)
	}
	return certs, nil
}

// CreateCertificate generates an RSA-2048 keypair and CSR via C1, submits
// it, and returns the full Certificate with the private key attached, per
// spec.md §4.6.
func (c *Client) CreateCertificate(ctx context.Context, commonName string) (*Certificate, error) {
	const op = "provisioning.CreateCertificate"

	key, err := ipacrypto.GenerateRSAKeypair(2048)
	if err != nil {
		return nil, err
	}
	csrPEM, err := ipacrypto.BuildCSR(key, commonName)
	if err != nil {
		return nil, err
	}

	result, err := c.do(ctx, op, submitCertificatePath, map[string]interface{}{
		"csrContent": string(csrPEM),
		"type":       "development",
	})
	if err != nil {
		return nil, err
	}

	m, _ := result["certRequest"].(map[string]interface{})
	cert, err := certFromResponse(m)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindCsrRejected, err)
	}

	cert.PrivateKeyDER = x509.MarshalPKCS1PrivateKey(key)
	return cert, nil
}

// RevokeCertificate revokes the certificate identified by serial.
func (c *Client) RevokeCertificate(ctx context.Context, serial string) error {
	const op = "provisioning.RevokeCertificate"

	_, err := c.do(ctx, op, revokeCertificatePath, map[string]interface{}{
		"serialNumber": serial,
	})
	return err
}

func certFromResponse(m map[string]interface{}) (*Certificate, error) {
	if m == nil {
		return nil, ipaerr.New("provisioning.certFromResponse", ipaerr.KindAPIError, nil, "empty certRequest")
	}

	cert := &Certificate{
		SerialNumber: stringField(m, "serialNumber"),
		Name:         stringField(m, "name"),
	}

	if pemContent := stringField(m, "certContent"); pemContent != "" {
		block, _ := pem.Decode([]byte(pemContent))
		if block != nil {
			cert.CertificateDER = block.Bytes
			if fields, err := ipacrypto.ParseX509DER(block.Bytes); err == nil {
				cert.Fields = fields
			}
		}
	}

	return cert, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
