// Package ipasign wires the six components of the signing engine into the
// two control-flow pipelines spec.md §2 names: Annual (C1 -> C2 -> C3, using
// C4) and Weekly (C5 -> C6 -> manufactured identity -> C3). C3 itself stays
// identity-agnostic; this package is where the two identity-acquisition
// paths converge on the same bundle.SignArchive call.
package ipasign

import (
	"context"
	"time"

	"github.com/sidesign/ipasign/auth"
	"github.com/sidesign/ipasign/bundle"
	"github.com/sidesign/ipasign/codesign"
	ipacrypto "github.com/sidesign/ipasign/crypto"
	"github.com/sidesign/ipasign/identity"
	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/profile"
	"github.com/sidesign/ipasign/provisioning"
)

// Options configures a signing run, per the caller-facing options table of
// spec.md §6.
type Options struct {
	ForceReinstall   bool
	SkipVerification bool
	TimeoutSeconds   int
	PreserveData     bool
	NewBundleID      string
}

func (o Options) timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// Result is the outcome of a signing run.
type Result struct {
	Success           bool
	OutputPath        string
	EffectiveBundleID string
	Warnings          []string
}

// SignAnnual implements the Annual pipeline: decrypt the P12 in C1, parse
// the provisioning profile in C2, validate their linkage, then hand both to
// C3/C4 to rewrite and sign the archive.
func SignAnnual(ctx context.Context, p12DER []byte, p12Password string, profileRaw []byte, input, output string, opts Options) (*Result, error) {
	const op = "ipasign.SignAnnual"

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	certFields, keyDER, err := ipacrypto.ParseP12(p12DER, p12Password)
	if err != nil {
		return nil, err
	}

	prof, err := profile.Parse(profileRaw)
	if err != nil {
		return nil, err
	}

	sid := &identity.SigningIdentity{
		Certificate: certFields,
		PrivateKey:  keyDER,
		Profile:     prof,
		Method:      identity.MethodAnnual,
	}

	return signWithIdentity(ctx, op, sid, input, output, opts)
}

// WeeklyIdentityParams are the inputs SignWeekly needs beyond an
// authenticated session: which device and bundle id to provision for.
type WeeklyIdentityParams struct {
	BundleID       string
	DeviceUDID     string
	CertCommonName string
}

// SignWeekly implements the Weekly pipeline: drive C5's already-authenticated
// session through C6 to manufacture a Certificate and ProvisioningProfile,
// then hand that identity to C3/C4 exactly as SignAnnual does.
func SignWeekly(ctx context.Context, session *auth.Session, teamID string, params WeeklyIdentityParams, input, output string, opts Options) (*Result, error) {
	const op = "ipasign.SignWeekly"

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	client := provisioning.New(session, teamID)

	cert, err := client.CreateCertificate(ctx, params.CertCommonName)
	if err != nil {
		return nil, err
	}

	prof, err := client.CreateProfile(ctx, params.BundleID, params.DeviceUDID, cert)
	if err != nil {
		return nil, err
	}

	certFields, err := ipacrypto.ParseX509DER(cert.CertificateDER)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindProfileCreationFailed, err)
	}

	sid := &identity.SigningIdentity{
		Certificate: certFields,
		PrivateKey:  cert.PrivateKeyDER,
		Profile:     prof,
		Method:      identity.MethodWeekly,
	}

	return signWithIdentity(ctx, op, sid, input, output, opts)
}

func signWithIdentity(ctx context.Context, op string, sid *identity.SigningIdentity, input, output string, opts Options) (*Result, error) {
	signer := codesign.Select()

	signResult, err := bundle.SignArchive(ctx, input, output, sid, signer, bundle.SignOptions{
		BundleIDOverride: opts.NewBundleID,
		SkipValidation:   opts.SkipVerification,
	})
	if err != nil {
		return &Result{Success: false}, err
	}

	return &Result{
		Success:           true,
		OutputPath:        signResult.OutputPath,
		EffectiveBundleID: signResult.EffectiveBundleID,
		Warnings:          signResult.Warnings,
	}, nil
}
