// Package identity validates the linkage between a certificate and a
// provisioning profile before either pipeline hands them to the bundle
// rewriter, keeping C3 identity-agnostic per spec.md §2.
package identity

import (
	"fmt"
	"time"

	ipacrypto "github.com/sidesign/ipasign/crypto"
	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/profile"
)

// Method distinguishes how a SigningIdentity was obtained.
type Method string

const (
	MethodAnnual Method = "annual"
	MethodWeekly Method = "weekly"
)

// SigningIdentity pairs a certificate with a provisioning profile, per
// spec.md §3.
type SigningIdentity struct {
	Certificate *ipacrypto.CertificateFields
	PrivateKey  []byte // DER, portable form
	Profile     *profile.Profile
	Method      Method
}

// Validate checks the invariants from spec.md §3: both components must be
// temporally valid at now, the certificate's team id must equal the
// profile's team id, and the certificate's fingerprint must appear in the
// profile's embedded-certificate list. skipValidation bypasses this check
// entirely per the caller option spec.md §6 documents as
// "skip_verification".
func (s *SigningIdentity) Validate(now time.Time, skipValidation bool) error {
	const op = "identity.Validate"

	if skipValidation {
		return nil
	}

	if !s.Certificate.ValidAt(now) {
		return ipaerr.New(op, ipaerr.KindCertificateExpired,
			fmt.Errorf("certificate validity window %s..%s does not cover %s",
				s.Certificate.NotBefore, s.Certificate.NotAfter, now), "")
	}
	if !s.Profile.ValidAt(now) {
		return ipaerr.New(op, ipaerr.KindProfileExpired,
			fmt.Errorf("profile validity window %s..%s does not cover %s",
				s.Profile.CreationDate, s.Profile.ExpirationDate, now), "")
	}
	if s.Certificate.TeamID != s.Profile.TeamID {
		return ipaerr.New(op, ipaerr.KindTeamIDMismatch,
			fmt.Errorf("certificate team id %q does not match profile team id %q",
				s.Certificate.TeamID, s.Profile.TeamID),
			"use a certificate and profile issued to the same team")
	}
	if !s.Profile.HasCertificateFingerprint(s.Certificate.SHA1) {
		return ipaerr.New(op, ipaerr.KindCertificateNotInProfile,
			fmt.Errorf("certificate fingerprint not found in profile's embedded certificates"), "")
	}

	return nil
}
