// Package auth implements the Apple Auth Client (C5): the tagged state
// machine of spec.md §4.5 driving a password + two-factor sign-in against
// Apple's idmsa endpoints, with anisette anti-replay headers captured and
// replayed verbatim. Grounded on the teacher's general HTTP-header-capture
// style and the other_examples rclone iCloud Session.Request pattern of
// reading X-Apple-* response headers back into session state.
package auth

// State is one node of the authentication state machine in spec.md §4.5.
type State string

const (
	StateStart         State = "start"
	StateReady         State = "ready"
	StateChallenged    State = "challenged"
	StateAuthenticated State = "authenticated"
	StateAwaitingCode  State = "awaiting_code"
	StateFailed        State = "failed"
)
