package crypto

import (
	"crypto/x509"
	"strings"
	"time"

	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/teamid"
)

// Variant classifies a certificate by its intended signing use.
type Variant string

const (
	VariantDevelopment  Variant = "development"
	VariantDistribution Variant = "distribution"
	VariantFree         Variant = "free"
	VariantUnknown      Variant = "unknown"
)

// CertificateFields holds the subset of an X.509 certificate this engine
// cares about, grounded on spec.md §3's Certificate data model.
type CertificateFields struct {
	SerialNumber string
	CommonName   string
	TeamID       string
	Variant      Variant
	NotBefore    time.Time
	NotAfter     time.Time
	SHA1         [20]byte
	SHA256       [32]byte
	Raw          []byte
}

// ParseX509DER extracts subject attributes, validity, serial, and
// fingerprints from a DER-encoded certificate. Team id is extracted from the
// organisational-unit component; variant is a case-insensitive heuristic on
// the common name, both per spec.md §4.1.
func ParseX509DER(der []byte) (*CertificateFields, error) {
	const op = "crypto.ParseX509DER"

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindMalformedP12, err)
	}

	var teamID string
	for _, ou := range cert.Subject.OrganizationalUnit {
		if id := teamid.ExtractFromOrgUnit(ou); id != "" {
			teamID = id
			break
		}
	}

	return &CertificateFields{
		SerialNumber: cert.SerialNumber.String(),
		CommonName:   cert.Subject.CommonName,
		TeamID:       teamID,
		Variant:      classifyVariant(cert.Subject.CommonName),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		SHA1:         SHA1(cert.Raw),
		SHA256:       SHA256(cert.Raw),
		Raw:          cert.Raw,
	}, nil
}

// classifyVariant applies the ordered, case-insensitive substring match from
// spec.md §4.1: "development"|"developer" -> development; "distribution" ->
// distribution; else unknown.
func classifyVariant(commonName string) Variant {
	lower := strings.ToLower(commonName)
	switch {
	case strings.Contains(lower, "development"), strings.Contains(lower, "developer"):
		return VariantDevelopment
	case strings.Contains(lower, "distribution"):
		return VariantDistribution
	default:
		return VariantUnknown
	}
}

// ValidAt reports whether the certificate's validity window covers now, and
// that not_before <= not_after (spec.md §3 invariant).
func (c *CertificateFields) ValidAt(now time.Time) bool {
	if c.NotBefore.After(c.NotAfter) {
		return false
	}
	return !now.Before(c.NotBefore) && !now.After(c.NotAfter)
}
