package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sidesign/ipasign/ipaerr"
)

const idmsaBase = "https://idmsa.apple.com/appleauth/auth"

// Endpoint paths, overridable in tests to point at an httptest.Server
// instead of the real idmsa host.
var (
	signInPath       = idmsaBase + "/signin"
	trustedDevPath   = idmsaBase + "/verify/trusteddevice"
	securityCodePath = idmsaBase + "/verify/trusteddevice/securitycode"
	twoSVTrustPath   = idmsaBase + "/2sv/trust"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// These constants name the response headers the session tracks for
// anti-replay and identity, per spec.md §4.5.
const (
	headerSessionID    = "X-Apple-ID-Session-Id"
	headerSCNT         = "scnt"
	headerDSID         = "X-Apple-DS-ID"
	headerSessionToken = "X-Apple-Session-Token"
)

// Session is one authentication attempt's mutable state, driven through the
// states of spec.md §4.5.
type Session struct {
	State State

	AccountName string
	DSID        string
	SessionToken string
	ExpiresAt   time.Time

	scnt      string
	sessionID string
	anisette  map[string]string

	hc *httpClient
}

// NewSession performs fetch_anisette and transitions START -> READY, per
// spec.md §4.5.
func NewSession(ctx context.Context) (*Session, error) {
	hc := newHTTPClient()
	anisette, err := fetchAnisette(ctx, hc, AnisetteProviders)
	if err != nil {
		return nil, err
	}
	return &Session{State: StateReady, anisette: anisette, hc: hc}, nil
}

// Abort causes any in-flight or subsequent call on this session to fail
// with ipaerr.KindCancelled, per spec.md §4.5.
func (s *Session) Abort() {
	s.hc.abort()
}

func (s *Session) newRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Xcode")
	if s.scnt != "" {
		req.Header.Set("scnt", s.scnt)
	}
	if s.sessionID != "" {
		req.Header.Set("X-Apple-ID-Session-Id", s.sessionID)
	}
	for k, v := range s.anisette {
		req.Header.Set(k, v)
	}
	return req, nil
}

// doRetryable builds and sends one request per attempt via buildReq,
// applying the retryable backoff policy. A 503 response is treated as
// ServiceUnavailable and retried; any other status is returned as-is for
// the caller's own switch.
func (s *Session) doRetryable(ctx context.Context, op string, timeout time.Duration, buildReq func() (*http.Request, error)) (*http.Response, error) {
	return retryable(ctx, func() (*http.Response, error) {
		req, err := buildReq()
		if err != nil {
			return nil, backoff.Permanent(ipaerr.Wrap(op, ipaerr.KindAPIError, err))
		}
		resp, err := s.hc.do(ctx, req, timeout)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, ipaerr.New(op, ipaerr.KindServiceUnavailable, nil, "")
		}
		return resp, nil
	})
}

func (s *Session) captureHeaders(resp *http.Response) {
	if v := resp.Header.Get(headerSCNT); v != "" {
		s.scnt = v
	}
	if v := resp.Header.Get(headerSessionID); v != "" {
		s.sessionID = v
	}
	if v := resp.Header.Get(headerDSID); v != "" {
		s.DSID = v
	}
	if v := resp.Header.Get(headerSessionToken); v != "" {
		s.SessionToken = v
	}
}

type signInRequest struct {
	AccountName string `json:"accountName"`
	Password    string `json:"password"`
	RememberMe  bool   `json:"rememberMe"`
}

// SignIn performs the initiate step of spec.md §4.5: a GET to capture
// anti-replay nonces, then a password POST. Transitions READY ->
// CHALLENGED, and on to AUTHENTICATED or AWAITING_CODE depending on the
// response code.
func (s *Session) SignIn(ctx context.Context, accountName, password string) error {
	const op = "auth.Session.SignIn"

	initResp, err := s.doRetryable(ctx, op, requestTimeout, func() (*http.Request, error) {
		return s.newRequest(ctx, http.MethodGet, signInPath, nil)
	})
	if err != nil {
		return err
	}
	s.captureHeaders(initResp)
	initResp.Body.Close()

	s.State = StateChallenged
	s.AccountName = accountName

	resp, err := s.doRetryable(ctx, op, requestTimeout, func() (*http.Request, error) {
		return s.newRequest(ctx, http.MethodPost, signInPath, signInRequest{
			AccountName: accountName,
			Password:    password,
			RememberMe:  true,
		})
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	s.captureHeaders(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		s.State = StateAuthenticated
		s.ExpiresAt = time.Now().Add(defaultSessionTTL)
		return nil
	case http.StatusConflict:
		s.State = StateAwaitingCode
		return nil
	case http.StatusUnauthorized:
		s.State = StateFailed
		return ipaerr.New(op, ipaerr.KindBadCredentials, nil, "")
	case http.StatusForbidden:
		s.State = StateFailed
		return ipaerr.New(op, ipaerr.KindAccountLocked, nil, "")
	default:
		s.State = StateFailed
		return ipaerr.New(op, ipaerr.KindAPIError, nil, resp.Status)
	}
}

// RequestTwoFactorCode triggers a push of a 6-digit code to the account's
// trusted devices, per spec.md §4.5: PUT the trusted-device endpoint,
// falling back to a GET on the 2sv-trust endpoint if the PUT is rejected.
func (s *Session) RequestTwoFactorCode(ctx context.Context) error {
	const op = "auth.Session.RequestTwoFactorCode"

	resp, err := s.doRetryable(ctx, op, requestTimeout, func() (*http.Request, error) {
		return s.newRequest(ctx, http.MethodPut, trustedDevPath, nil)
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	fresp, err := s.doRetryable(ctx, op, requestTimeout, func() (*http.Request, error) {
		return s.newRequest(ctx, http.MethodGet, twoSVTrustPath, nil)
	})
	if err != nil {
		return err
	}
	defer fresp.Body.Close()
	if fresp.StatusCode < 200 || fresp.StatusCode >= 300 {
		return ipaerr.New(op, ipaerr.KindAPIError, nil, fresp.Status)
	}
	return nil
}

type securityCodeRequest struct {
	SecurityCode struct {
		Code string `json:"code"`
	} `json:"securityCode"`
}

// VerifyCode submits the user-collected 6-digit code, per spec.md §4.5.
// Transitions AWAITING_CODE -> AUTHENTICATED on success, or -> FAILED.
func (s *Session) VerifyCode(ctx context.Context, code string) error {
	const op = "auth.Session.VerifyCode"

	body := securityCodeRequest{}
	body.SecurityCode.Code = code

	resp, err := s.doRetryable(ctx, op, requestTimeout, func() (*http.Request, error) {
		return s.newRequest(ctx, http.MethodPost, securityCodePath, body)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	s.captureHeaders(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		s.requestTrust(ctx)
		s.State = StateAuthenticated
		s.ExpiresAt = time.Now().Add(defaultSessionTTL)
		return nil
	case http.StatusUnauthorized:
		s.State = StateFailed
		return ipaerr.New(op, ipaerr.KindInvalidCode, nil, "")
	case http.StatusBadRequest:
		s.State = StateFailed
		return ipaerr.New(op, ipaerr.KindCodeExpired, nil, "")
	default:
		s.State = StateFailed
		return ipaerr.New(op, ipaerr.KindAPIError, nil, resp.Status)
	}
}

// requestTrust calls the 2sv trust endpoint best-effort after a successful
// code verification, per spec.md §4.5. Failures here do not affect the
// session's authenticated status.
func (s *Session) requestTrust(ctx context.Context) {
	req, err := s.newRequest(ctx, http.MethodGet, twoSVTrustPath, nil)
	if err != nil {
		return
	}
	resp, err := s.hc.do(ctx, req, requestTimeout)
	if err != nil {
		return
	}
	resp.Body.Close()
}
