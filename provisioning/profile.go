package provisioning

import (
	"context"
	"encoding/base64"

	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/profile"
)

// CreateProfile ensures the device and app-id exist, downloads the team
// provisioning profile for bundleID, and parses it via C2, per spec.md
// §4.6. cert identifies which certificate the downloaded profile should
// embed; the developer-services API selects this server-side from the
// team's certificates, so only its serial is sent.
func (c *Client) CreateProfile(ctx context.Context, bundleID, deviceUDID string, cert *Certificate) (*profile.Profile, error) {
	const op = "provisioning.CreateProfile"

	if _, err := c.RegisterDevice(ctx, deviceUDID, ""); err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindProfileCreationFailed, err)
	}
	appID, err := c.RegisterAppID(ctx, bundleID, "")
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindProfileCreationFailed, err)
	}

	params := map[string]interface{}{
		"appIdId": appID.AppIDID,
	}
	if cert != nil {
		params["certificateSerialNumber"] = cert.SerialNumber
	}

	result, err := c.do(ctx, op, downloadProfilePath, params)
	if err != nil {
		return nil, err
	}

	encoded := stringField(result, "provisioningProfile")
	if encoded == "" {
		if m, ok := result["provisioningProfile"].(map[string]interface{}); ok {
			encoded = stringField(m, "encodedProfile")
		}
	}
	if encoded == "" {
		return nil, ipaerr.New(op, ipaerr.KindProfileCreationFailed, nil, "no provisioningProfile in response")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindProfileCreationFailed, err)
	}

	p, err := profile.Parse(raw)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindProfileCreationFailed, err)
	}
	return p, nil
}
