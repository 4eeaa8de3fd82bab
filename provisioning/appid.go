package provisioning

import (
	"context"

	"github.com/sidesign/ipasign/ipaerr"
)

// AppID is a registered application identifier, per spec.md §4.6.
type AppID struct {
	AppIDID   string // apple-assigned identifier, memoised by RegisterAppID
	BundleID  string
	Name      string
}

// ListAppIDs lists the team's registered application identifiers.
func (c *Client) ListAppIDs(ctx context.Context) ([]AppID, error) {
	const op = "provisioning.ListAppIDs"

	result, err := c.do(ctx, op, listAppIDsPath, nil)
	if err != nil {
		return nil, err
	}

	raw, _ := result["appIds"].([]interface{})
	ids := make([]AppID, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id := AppID{
			AppIDID:  stringField(m, "appIdId"),
			BundleID: stringField(m, "identifier"),
			Name:     stringField(m, "name"),
		}
		ids = append(ids, id)
		c.appIDCache[id.BundleID] = id.AppIDID
	}
	return ids, nil
}

// RegisterAppID creates bundleID if absent and memoises its apple-assigned
// app-id-id for later lookups (create_profile depends on this), per
// spec.md §4.6.
func (c *Client) RegisterAppID(ctx context.Context, bundleID, name string) (*AppID, error) {
	const op = "provisioning.RegisterAppID"

	if appIDID, ok := c.appIDCache[bundleID]; ok {
		return &AppID{AppIDID: appIDID, BundleID: bundleID, Name: name}, nil
	}

	if name == "" {
		name = bundleID
	}

	result, err := c.do(ctx, op, addAppIDPath, map[string]interface{}{
		"identifier": bundleID,
		"name":       name,
	})
	if err != nil {
		return nil, err
	}

	m, _ := result["appId"].(map[string]interface{})
	if m == nil {
		return nil, ipaerr.New(op, ipaerr.KindInvalidBundleID, nil, "developer-services returned no appId")
	}

	id := &AppID{
		AppIDID:  stringField(m, "appIdId"),
		BundleID: stringField(m, "identifier"),
		Name:     stringField(m, "name"),
	}
	c.appIDCache[bundleID] = id.AppIDID
	return id, nil
}
