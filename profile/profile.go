// Package profile parses CMS-wrapped provisioning profiles into the
// structured form the bundle rewriter and provisioning client consume.
package profile

import (
	"fmt"
	"time"

	ipacrypto "github.com/sidesign/ipasign/crypto"
	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/plist"
)

// Variant classifies a provisioning profile's intended distribution channel.
type Variant string

const (
	VariantDevelopment Variant = "development"
	VariantAdHoc       Variant = "ad-hoc"
	VariantAppStore    Variant = "app-store"
	VariantEnterprise  Variant = "enterprise"
)

// Profile is the parsed form of a provisioning profile, matching spec.md §3.
type Profile struct {
	UUID                  string
	Name                  string
	AppIDPrefix           string // team id prefix of the application-identifier entitlement
	BundleIDPattern       string // the bundle id pattern portion, may end in "*"
	TeamID                string
	TeamName              string
	Variant               Variant
	CreationDate          time.Time
	ExpirationDate        time.Time
	ProvisionedDevices    []string
	Entitlements          map[string]interface{}
	DeveloperCertificates [][]byte
	Raw                   []byte // verbatim signed CMS bytes, embedded as-is into the app bundle
}

// rawProfile mirrors the plist keys a mobileprovision payload carries.
type rawProfile struct {
	UUID                  string                 `plist:"UUID"`
	Name                  string                 `plist:"Name"`
	TeamIdentifier        []string               `plist:"TeamIdentifier"`
	TeamName              string                 `plist:"TeamName"`
	CreationDate          time.Time              `plist:"CreationDate"`
	ExpirationDate        time.Time              `plist:"ExpirationDate"`
	ProvisionedDevices    []string               `plist:"ProvisionedDevices"`
	ProvisionsAllDevices  bool                   `plist:"ProvisionsAllDevices"`
	Entitlements          map[string]interface{} `plist:"Entitlements"`
	DeveloperCertificates [][]byte               `plist:"DeveloperCertificates"`
}

// Parse extracts the CMS-wrapped plist payload from raw mobileprovision
// bytes and builds a Profile, classifying its variant per spec.md §4.2.
func Parse(raw []byte) (*Profile, error) {
	const op = "profile.Parse"

	payload, err := ipacrypto.ExtractCMSPayload(raw)
	if err != nil {
		return nil, err
	}

	var rp rawProfile
	if err := plist.Decode(payload, &rp); err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindMalformedProfile, err)
	}

	if len(rp.TeamIdentifier) == 0 {
		return nil, ipaerr.New(op, ipaerr.KindMalformedProfile, fmt.Errorf("profile has no TeamIdentifier"), "")
	}
	if len(rp.DeveloperCertificates) == 0 {
		return nil, ipaerr.New(op, ipaerr.KindMalformedProfile, fmt.Errorf("profile embeds no certificates"), "")
	}

	appIDValue, _ := rp.Entitlements["application-identifier"].(string)
	prefix, pattern := splitAppIdentifier(appIDValue)

	p := &Profile{
		UUID:                  rp.UUID,
		Name:                  rp.Name,
		AppIDPrefix:           prefix,
		BundleIDPattern:       pattern,
		TeamID:                rp.TeamIdentifier[0],
		TeamName:              rp.TeamName,
		Variant:               classifyVariant(rp),
		CreationDate:          rp.CreationDate,
		ExpirationDate:        rp.ExpirationDate,
		ProvisionedDevices:    rp.ProvisionedDevices,
		Entitlements:          rp.Entitlements,
		DeveloperCertificates: rp.DeveloperCertificates,
		Raw:                   raw,
	}

	return p, nil
}

// classifyVariant evaluates the table from spec.md §4.2, in order, first
// match wins: ProvisionsAllDevices -> enterprise; get-task-allow -> development;
// non-empty ProvisionedDevices -> ad-hoc; else app-store.
func classifyVariant(rp rawProfile) Variant {
	if rp.ProvisionsAllDevices {
		return VariantEnterprise
	}
	if allow, _ := rp.Entitlements["get-task-allow"].(bool); allow {
		return VariantDevelopment
	}
	if len(rp.ProvisionedDevices) > 0 {
		return VariantAdHoc
	}
	return VariantAppStore
}

// splitAppIdentifier separates "TEAMID.bundle.id.pattern" into its team
// prefix and bundle-id pattern parts.
func splitAppIdentifier(appID string) (prefix, pattern string) {
	idx := -1
	for i := 0; i < len(appID); i++ {
		if appID[i] == '.' {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", appID
	}
	return appID[:idx], appID[idx+1:]
}

// ValidAt reports whether the profile's validity window covers now.
func (p *Profile) ValidAt(now time.Time) bool {
	return !now.Before(p.CreationDate) && !now.After(p.ExpirationDate)
}

// HasCertificateFingerprint reports whether sha1 matches the SHA-1 digest of
// any embedded developer certificate, used to validate the
// SigningIdentity <-> Profile linkage invariant in spec.md §3.
func (p *Profile) HasCertificateFingerprint(sha1 [20]byte) bool {
	for _, der := range p.DeveloperCertificates {
		if ipacrypto.SHA1(der) == sha1 {
			return true
		}
	}
	return false
}

// EffectiveBundleID resolves the output bundle id for originalBundleID per
// spec.md §4.3 step 3's pattern rules: a literal "*" pattern keeps the
// original id; a "prefix.*" pattern keeps the original id if it already
// matches the prefix, otherwise substitutes the prefix onto the original's
// last dot-segment; a concrete pattern is adopted verbatim.
func (p *Profile) EffectiveBundleID(originalBundleID string) string {
	pattern := p.BundleIDPattern
	if pattern == "*" {
		return originalBundleID
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		if hasPrefix(originalBundleID, prefix) {
			return originalBundleID
		}
		return prefix + lastSegment(originalBundleID)
	}
	return pattern
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func lastSegment(s string) string {
	idx := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			idx = i
			break
		}
	}
	if idx == -1 {
		return s
	}
	return s[idx+1:]
}
