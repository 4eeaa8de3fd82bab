package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"github.com/sidesign/ipasign/ipaerr"
)

// AnisetteProviders is the ordered list of community-operated anisette
// attestation endpoints consulted during fetch_anisette, per spec.md §4.5.
// Callers may override this for testing or to pin a private provider.
var AnisetteProviders = []string{
	"https://sideload.anisette.xyz",
	"https://ani.sidestore.io",
}

// anisetteBody is the subset of an anisette server's JSON response this
// client cares about: presence of the machine identifier and attestation
// fields decides whether the response is usable, per spec.md §4.5.
type anisetteBody struct {
	MachineIdentifier  string `json:"X-Apple-I-MD-M"`
	MachineAttestation string `json:"X-Apple-I-MD"`
}

// fetchAnisette GETs each provider in order and returns the full header set
// of the first response whose body carries non-empty machine-identifier and
// machine-attestation fields. That full header set is preserved verbatim
// and replayed on every subsequent request in the session, per spec.md
// §4.5's anti-replay requirement.
func fetchAnisette(ctx context.Context, hc *httpClient, providers []string) (map[string]string, error) {
	const op = "auth.fetchAnisette"

	var lastErr error
	for _, base := range providers {
		resp, err := retryable(ctx, func() (*http.Response, error) {
			req, err := http.NewRequest(http.MethodGet, base+"/v3/provisioning_info", nil)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return hc.do(ctx, req, anisetteTimeout)
		})
		if err != nil {
			lastErr = err
			continue
		}

		var body anisetteBody
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if decodeErr != nil || body.MachineIdentifier == "" || body.MachineAttestation == "" {
			lastErr = decodeErr
			continue
		}

		headers := make(map[string]string, len(resp.Header))
		for key := range resp.Header {
			headers[key] = resp.Header.Get(key)
		}
		return headers, nil
	}

	return nil, ipaerr.New(op, ipaerr.KindAnisetteUnavailable, lastErr, "no configured anisette provider returned usable headers")
}
