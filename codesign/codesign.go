// Package codesign implements the Code Signer (C4): a native backend that
// delegates to the host's codesign utility, and a portable ad-hoc backend
// (package codesign/adhoc) for hosts where it is unavailable. Grounded on
// the teacher's interfaces.Signer, security/signing.go CodeSigner, and
// internal/bundle/signing.go codeSignBundle, generalized from per-bundle
// macOS signing to per-binary iOS signing against an explicit fingerprint.
package codesign

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sidesign/ipasign/ipaerr"
)

// SignRequest names a single Mach-O binary to sign, per spec.md §4.3 step 8
// and §4.4.
type SignRequest struct {
	// Path is the binary to sign.
	Path string
	// Identifier is the bundle id (main executable) or filename stem
	// (nested frameworks/plugins) embedded in the CodeDirectory.
	Identifier string
	// Fingerprint is the hex-encoded SHA-1 of the signing certificate.
	// Used by NativeSigner as the "-s" argument; ignored by the ad-hoc
	// backend, which always signs with the special identity "-".
	Fingerprint string
	// EntitlementsPath is non-empty only for the main executable, per
	// spec.md §4.3 step 8.
	EntitlementsPath string
}

// Signer implements the C4 operation: signing one binary at a time.
// Grounded on the teacher's interfaces.Signer.
type Signer interface {
	Sign(ctx context.Context, req SignRequest) error
}

// NativeSigner delegates to the host's codesign(1) utility, grounded on the
// teacher's internal/bundle/signing.go codeSignBundle.
type NativeSigner struct{}

// Available reports whether the codesign utility is present on PATH, the
// host capability probe spec.md §4.4 requires before selecting a backend.
func Available() bool {
	_, err := exec.LookPath("codesign")
	return err == nil
}

// Sign invokes `codesign -f -s <fingerprint> [--entitlements <path>]
// <binary>`, per spec.md §4.4.
func (NativeSigner) Sign(ctx context.Context, req SignRequest) error {
	const op = "codesign.NativeSigner.Sign"

	args := []string{"-f", "-s", req.Fingerprint}
	if req.EntitlementsPath != "" {
		args = append(args, "--entitlements", req.EntitlementsPath)
	}
	args = append(args, req.Path)

	cmd := exec.CommandContext(ctx, "codesign", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ipaerr.New(op, ipaerr.KindNativeSignerFailed,
			fmt.Errorf("codesign %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out))), "")
	}
	return nil
}
