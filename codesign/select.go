package codesign

import (
	"context"

	"github.com/sidesign/ipasign/codesign/adhoc"
)

// Select performs the host capability probe spec.md §4.4 requires:
// NativeSigner when codesign(1) is on PATH, otherwise the portable ad-hoc
// backend.
func Select() Signer {
	if Available() {
		return NativeSigner{}
	}
	return adhocSigner{}
}

// adhocSigner adapts package codesign/adhoc's stateless Sign function to the
// Signer interface. adhoc cannot import codesign (codesign already imports
// adhoc), so the adapter lives here instead.
type adhocSigner struct{}

func (adhocSigner) Sign(ctx context.Context, req SignRequest) error {
	return adhoc.Sign(req.Path, req.Identifier, req.EntitlementsPath)
}
