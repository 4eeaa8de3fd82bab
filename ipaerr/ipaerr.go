// Package ipaerr defines the typed error kinds shared across the signing
// engine's components, following the wrap-with-operation-context pattern
// the rest of the module uses.
package ipaerr

import "fmt"

// Kind classifies an error for programmatic handling (retry policy,
// user messaging) independent of its wrapped cause.
type Kind string

const (
	// input
	KindNotAnArchive    Kind = "not_an_archive"
	KindNoPayload       Kind = "no_payload"
	KindNoAppBundle     Kind = "no_app_bundle"
	KindMissingInfoPlist Kind = "missing_info_plist"
	KindMalformedProfile Kind = "malformed_profile"
	KindMalformedP12    Kind = "malformed_p12"
	KindBadPassword     Kind = "bad_password"

	// validation
	KindCertificateExpired     Kind = "certificate_expired"
	KindProfileExpired         Kind = "profile_expired"
	KindTeamIDMismatch         Kind = "team_id_mismatch"
	KindCertificateNotInProfile Kind = "certificate_not_in_profile"
	KindInvalidUDID            Kind = "invalid_udid"

	// crypto
	KindKeygenFailed    Kind = "keygen_failed"
	KindSignatureFailed Kind = "signature_failed"

	// auth
	KindBadCredentials   Kind = "bad_credentials"
	KindAccountLocked    Kind = "account_locked"
	KindTwoFactorRequired Kind = "two_factor_required"
	KindInvalidCode      Kind = "invalid_code"
	KindCodeExpired      Kind = "code_expired"

	// remote
	KindAnisetteUnavailable Kind = "anisette_unavailable"
	KindAPIError            Kind = "api_error"
	KindCertQuotaExceeded   Kind = "cert_quota_exceeded"
	KindAppIDQuotaExceeded  Kind = "app_id_quota_exceeded"
	KindDeviceQuotaExceeded Kind = "device_quota_exceeded"
	KindServiceUnavailable  Kind = "service_unavailable"

	// provisioning
	KindSessionExpired      Kind = "session_expired"
	KindQuotaUnknown        Kind = "quota_unknown"
	KindCertNotFound        Kind = "cert_not_found"
	KindCsrRejected         Kind = "csr_rejected"
	KindInvalidBundleID     Kind = "invalid_bundle_id"
	KindProfileCreationFailed Kind = "profile_creation_failed"

	// io
	KindCancelled  Kind = "cancelled"
	KindTimeout    Kind = "timeout"
	KindIOFailed   Kind = "io_failed"

	// bundle rewriting specifics
	KindUnwritablePlist   Kind = "unwritable_plist"
	KindBinarySignFailed  Kind = "binary_sign_failed"
	KindRepackFailed      Kind = "repack_failed"
	KindNotACmsPlist      Kind = "not_a_cms_plist"
	KindNativeSignerFailed Kind = "native_signer_failed"
	KindNotMachO          Kind = "not_macho"
	KindLinkEditEditFailed Kind = "linkedit_edit_failed"
)

// Retryable reports whether callers should retry an error of this kind.
// Only remote transient failures are retryable; everything else (input,
// validation, crypto, auth, io) is surfaced immediately per spec.
func (k Kind) Retryable() bool {
	return k == KindServiceUnavailable
}

// Error wraps an underlying cause with an operation name and a typed kind,
// generalizing the teacher's single Op/Err/Help error type to a kind-based
// scheme callers can branch on with errors.Is / ipaerr.Is.
type Error struct {
	Op   string
	Kind Kind
	Err  error
	Help string
}

func (e *Error) Error() string {
	if e.Help != "" {
		return fmt.Sprintf("ipasign: %s: %s: %v\n  hint: %s", e.Op, e.Kind, e.Err, e.Help)
	}
	if e.Err != nil {
		return fmt.Sprintf("ipasign: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("ipasign: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, target) match when target is another *Error with
// the same Kind; a target of any other type does not match.
func (e *Error) Is(target error) bool {
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	return false
}

// New builds a new *Error. Err and Help are optional.
func New(op string, kind Kind, err error, help string) *Error {
	return &Error{Op: op, Kind: kind, Err: err, Help: help}
}

// Wrap is a convenience for New(op, kind, err, "").
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return false
	}
	return e.Kind == kind
}
