package ipasign

import (
	"context"
	"testing"

	"github.com/sidesign/ipasign/ipaerr"
)

func TestOptionsTimeoutDefault(t *testing.T) {
	var o Options
	if got, want := o.timeout().Seconds(), 300.0; got != want {
		t.Errorf("default timeout = %v, want %v", got, want)
	}
}

func TestOptionsTimeoutOverride(t *testing.T) {
	o := Options{TimeoutSeconds: 60}
	if got, want := o.timeout().Seconds(), 60.0; got != want {
		t.Errorf("timeout = %v, want %v", got, want)
	}
}

// SignAnnual must surface C1's malformed-container classification verbatim
// rather than reaching C2/C3 with garbage input.
func TestSignAnnualRejectsMalformedP12(t *testing.T) {
	_, err := SignAnnual(context.Background(), []byte("not a pkcs12 container"), "", nil, "in.ipa", "out.ipa", Options{})
	if err == nil {
		t.Fatal("expected an error for malformed p12 input")
	}
	if !ipaerr.Is(err, ipaerr.KindMalformedP12) {
		t.Errorf("expected KindMalformedP12, got %v", err)
	}
}

// With both the P12 and the profile malformed, SignAnnual must fail before
// C3 ever sees the archive.
func TestSignAnnualRejectsMalformedInputsBeforeTouchingArchive(t *testing.T) {
	_, err := SignAnnual(context.Background(), []byte("not a pkcs12 container"), "", []byte("not a profile"), "in.ipa", "out.ipa", Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
}
