package provisioning

import (
	"context"
	"regexp"

	"github.com/sidesign/ipasign/ipaerr"
)

// udidPattern matches a 40-character hex UDID, case-insensitively, allowing
// the hyphen some generators include, per spec.md §4.6.
var udidPattern = regexp.MustCompile(`^[0-9A-Fa-f-]{40}$`)

// Device is a registered test device, per spec.md §4.6.
type Device struct {
	DeviceID string
	UDID     string
	Name     string
}

// ListDevices lists the team's registered devices.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	const op = "provisioning.ListDevices"

	result, err := c.do(ctx, op, listDevicesPath, nil)
	if err != nil {
		return nil, err
	}

	raw, _ := result["devices"].([]interface{})
	devices := make([]Device, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		d := Device{
			DeviceID: stringField(m, "deviceId"),
			UDID:     stringField(m, "deviceNumber"),
			Name:     stringField(m, "name"),
		}
		devices = append(devices, d)
		c.deviceCache[d.UDID] = d
	}
	return devices, nil
}

// RegisterDevice registers udid if it is not already on the team, per
// spec.md §4.6. udid must match [0-9A-F-]{40} case-insensitively. A second
// call with a udid this Client already knows about produces zero network
// traffic, per spec.md §8 property 8.
func (c *Client) RegisterDevice(ctx context.Context, udid, name string) (*Device, error) {
	const op = "provisioning.RegisterDevice"

	if !udidPattern.MatchString(udid) {
		return nil, ipaerr.New(op, ipaerr.KindInvalidUDID, nil, "udid must be 40 hex characters")
	}

	if d, ok := c.deviceCache[udid]; ok {
		return &d, nil
	}

	if name == "" {
		name = udid
	}

	result, err := c.do(ctx, op, addDevicePath, map[string]interface{}{
		"deviceNumber": udid,
		"name":         name,
	})
	if err != nil {
		return nil, err
	}

	m, _ := result["device"].(map[string]interface{})
	if m == nil {
		return nil, ipaerr.New(op, ipaerr.KindDeviceQuotaExceeded, nil, "developer-services returned no device")
	}

	d := Device{
		DeviceID: stringField(m, "deviceId"),
		UDID:     stringField(m, "deviceNumber"),
		Name:     stringField(m, "name"),
	}
	c.deviceCache[udid] = d
	return &d, nil
}
