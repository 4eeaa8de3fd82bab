// Package entitlements implements the entitlement-merge policy of spec.md
// §4.3 step 5, rewired from the teacher's internal/bundle/profile.go
// line-scan extractor to operate on decoded plist trees from the plist
// package instead of raw XML text.
package entitlements

// mergeableKeys lists the entitlement keys that are carried over from the
// app's previous embedded-profile entitlements, per spec.md §4.3 step 5.
// Merge happens only when both the app previously had the key AND the new
// profile already declares it.
var mergeableKeys = []string{
	"aps-environment",
	"com.apple.developer.associated-domains",
	"com.apple.developer.icloud-container-identifiers",
	"com.apple.developer.ubiquity-container-identifiers",
	"com.apple.developer.ubiquity-kvstore-identifier",
	"com.apple.developer.default-data-protection",
	"com.apple.developer.networking.wifi-info",
	"com.apple.developer.healthkit",
	"com.apple.developer.homekit",
	"com.apple.developer.siri",
}

// Build constructs the entitlements map to serialize into
// archived-expanded-entitlements.xcent, per spec.md §4.3 step 5.
//
// profileEntitlements is the new provisioning profile's Entitlements dict.
// previousEntitlements is the app's previous embedded-profile Entitlements
// dict (nil or empty on first signing). teamID and effectiveBundleID
// override application-identifier and com.apple.developer.team-identifier
// unconditionally.
func Build(profileEntitlements, previousEntitlements map[string]interface{}, teamID, effectiveBundleID string) map[string]interface{} {
	merged := make(map[string]interface{}, len(profileEntitlements)+2)
	for k, v := range profileEntitlements {
		merged[k] = v
	}

	merged["application-identifier"] = teamID + "." + effectiveBundleID
	merged["com.apple.developer.team-identifier"] = teamID

	for _, key := range mergeableKeys {
		prevVal, hadPrev := previousEntitlements[key]
		_, newDeclares := profileEntitlements[key]
		if hadPrev && newDeclares {
			merged[key] = prevVal
		}
	}

	return merged
}
