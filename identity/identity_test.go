package identity

import (
	"testing"
	"time"

	ipacrypto "github.com/sidesign/ipasign/crypto"
	"github.com/sidesign/ipasign/profile"
)

func validCert() *ipacrypto.CertificateFields {
	return &ipacrypto.CertificateFields{
		TeamID:    "ABCDE12345",
		NotBefore: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		SHA1:      [20]byte{1, 2, 3},
	}
}

func validProfile(teamID string) *profile.Profile {
	return &profile.Profile{
		TeamID:         teamID,
		CreationDate:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateSuccess(t *testing.T) {
	certDER := []byte("certificate-der")
	fp := ipacrypto.SHA1(certDER)

	cert := validCert()
	cert.SHA1 = fp

	prof := validProfile("ABCDE12345")
	prof.DeveloperCertificates = [][]byte{certDER}

	si := &SigningIdentity{Certificate: cert, Profile: prof, Method: MethodAnnual}
	if err := si.Validate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateTeamIDMismatch(t *testing.T) {
	certDER := []byte("certificate-der")
	fp := ipacrypto.SHA1(certDER)

	cert := validCert()
	cert.SHA1 = fp
	cert.TeamID = "FGHIJ67890"

	prof := validProfile("ABCDE12345")
	prof.DeveloperCertificates = [][]byte{certDER}

	si := &SigningIdentity{Certificate: cert, Profile: prof}
	err := si.Validate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false)
	if err == nil {
		t.Fatal("expected team id mismatch error")
	}
}

func TestValidateExpiredProfile(t *testing.T) {
	certDER := []byte("certificate-der")
	fp := ipacrypto.SHA1(certDER)

	cert := validCert()
	cert.SHA1 = fp

	prof := validProfile("ABCDE12345")
	prof.DeveloperCertificates = [][]byte{certDER}
	prof.ExpirationDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	si := &SigningIdentity{Certificate: cert, Profile: prof}
	err := si.Validate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false)
	if err == nil {
		t.Fatal("expected profile-expired error")
	}
}

func TestValidateSkipsWhenRequested(t *testing.T) {
	si := &SigningIdentity{Certificate: &ipacrypto.CertificateFields{}, Profile: &profile.Profile{}}
	if err := si.Validate(time.Now(), true); err != nil {
		t.Fatalf("expected skip_verification to bypass all checks, got %v", err)
	}
}
