// Package provisioning implements C6, the developer-services client: the
// certificate, app-id, device, and profile management operations a
// weekly-signing pipeline drives against an authenticated C5 session,
// per spec.md §4.6.
package provisioning

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/sidesign/ipasign/auth"
	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/plist"
)

const developerServicesBase = "https://developerservices2.apple.com/services/QH65B2/account"

// Endpoint paths, overridable in tests to point at an httptest.Server
// instead of the real developer-services host, following the pattern
// established in auth/session.go.
var (
	listTeamsPath         = developerServicesBase + "/listTeams.action"
	listCertificatesPath  = developerServicesBase + "/listAllDevelopmentCerts.action"
	submitCertificatePath = developerServicesBase + "/submitDevelopmentCSR.action"
	revokeCertificatePath = developerServicesBase + "/revokeDevelopmentCert.action"
	listAppIDsPath        = developerServicesBase + "/listAppIds.action"
	addAppIDPath          = developerServicesBase + "/addAppId.action"
	listDevicesPath       = developerServicesBase + "/listDevices.action"
	addDevicePath         = developerServicesBase + "/addDevice.action"
	downloadProfilePath   = developerServicesBase + "/downloadTeamProvisioningProfile.action"
)

const requestTimeout = 30 * time.Second

// Client wraps an authenticated auth.Session and a selected team id,
// implementing the operations table of spec.md §4.6. It memoises
// bundle-id -> apple-assigned app-id, and udid -> registered device,
// across calls, as register_app_id and register_device require.
type Client struct {
	Session *auth.Session
	TeamID  string

	hc *http.Client

	appIDCache  map[string]string // bundle id -> apple-assigned app-id-id
	deviceCache map[string]Device // udid -> registered device
}

// New builds a provisioning Client for an authenticated session and team.
func New(session *auth.Session, teamID string) *Client {
	return &Client{
		Session:     session,
		TeamID:      teamID,
		hc:          &http.Client{},
		appIDCache:  make(map[string]string),
		deviceCache: make(map[string]Device),
	}
}

// ListTeams returns the teams the authenticated account belongs to. Callers
// select the first entry as the team id for all other operations, per
// spec.md §4.6.
func (c *Client) ListTeams(ctx context.Context) ([]string, error) {
	const op = "provisioning.ListTeams"

	result, err := c.do(ctx, op, listTeamsPath, nil)
	if err != nil {
		return nil, err
	}

	raw, _ := result["teams"].([]interface{})
	teams := make([]string, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if id := stringField(m, "teamId"); id != "" {
			teams = append(teams, id)
		}
	}
	return teams, nil
}

// do builds and sends a plist-encoded request to the developer-services
// host, decorating it with an Xcode user-agent, the session's DSID as
// X-Apple-I-Identity-Id, and the session token. The session's anisette
// headers are not sent.
func (c *Client) do(ctx context.Context, op, targetURL string, params map[string]interface{}) (map[string]interface{}, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	params["teamId"] = c.TeamID
	params["clientId"] = "XABBG36SBA"
	params["protocolVersion"] = "QH65B2"
	params["requestId"] = uuid.NewString()

	body, err := plist.EncodeXML(params)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindAPIError, err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	return retry(ctx, func() (map[string]interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(ipaerr.Wrap(op, ipaerr.KindAPIError, err))
		}
		req.Header.Set("Content-Type", "text/x-xml-plist")
		req.Header.Set("User-Agent", "Xcode")
		req.Header.Set("X-Apple-I-Identity-Id", c.Session.DSID)
		req.Header.Set("X-Apple-Session-Token", c.Session.SessionToken)

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, ipaerr.Wrap(op, ipaerr.KindServiceUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, backoff.Permanent(ipaerr.New(op, ipaerr.KindSessionExpired, nil, "re-authenticate via C5"))
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, ipaerr.New(op, ipaerr.KindServiceUnavailable, nil, "developer services unavailable")
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, backoff.Permanent(ipaerr.Wrap(op, ipaerr.KindAPIError, err))
		}

		result, err := plist.DecodeMap(data)
		if err != nil {
			return nil, backoff.Permanent(ipaerr.Wrap(op, ipaerr.KindAPIError, err))
		}

		if code, ok := result["resultCode"]; ok {
			if n, ok := toInt(code); ok && n != 0 {
				return result, backoff.Permanent(responseError(op, n, result))
			}
		}

		return result, nil
	})
}

// retry applies spec.md §7's policy ("ServiceUnavailable and transient
// network failures are retried up to 2 times with 500ms exponential
// backoff") to a single developer-services call. Every other failure is
// wrapped in backoff.Permanent by the caller so it surfaces immediately.
func retry(ctx context.Context, operation func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(ctx, operation, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// responseError maps a developer-services resultCode/userString pair to one
// of the typed failures spec.md §4.6 names for the given operation.
func responseError(op string, code int, result map[string]interface{}) error {
	msg, _ := result["userString"].(string)

	switch {
	case code == 8500 || code == 35:
		return ipaerr.New(op, ipaerr.KindSessionExpired, nil, msg)
	case op == "provisioning.CreateCertificate" && (code == 8004 || code == 9550):
		return ipaerr.New(op, ipaerr.KindCertQuotaExceeded, nil, msg)
	case op == "provisioning.CreateCertificate":
		return ipaerr.New(op, ipaerr.KindCsrRejected, nil, msg)
	case op == "provisioning.RevokeCertificate":
		return ipaerr.New(op, ipaerr.KindCertNotFound, nil, msg)
	case op == "provisioning.RegisterAppID" && code == 8556:
		return ipaerr.New(op, ipaerr.KindAppIDQuotaExceeded, nil, msg)
	case op == "provisioning.RegisterAppID":
		return ipaerr.New(op, ipaerr.KindInvalidBundleID, nil, msg)
	case op == "provisioning.RegisterDevice" && code == 8555:
		return ipaerr.New(op, ipaerr.KindDeviceQuotaExceeded, nil, msg)
	case op == "provisioning.RegisterDevice":
		return ipaerr.New(op, ipaerr.KindInvalidUDID, nil, msg)
	case op == "provisioning.CreateProfile":
		return ipaerr.New(op, ipaerr.KindProfileCreationFailed, nil, msg)
	default:
		return ipaerr.New(op, ipaerr.KindQuotaUnknown, nil, msg)
	}
}
