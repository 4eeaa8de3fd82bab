package entitlements

import "testing"

func TestBuildOverwritesIdentityKeys(t *testing.T) {
	profile := map[string]interface{}{
		"application-identifier":              "OLDTEAM.com.example.old",
		"com.apple.developer.team-identifier": "OLDTEAM",
		"get-task-allow":                       false,
	}

	got := Build(profile, nil, "ABCDE12345", "com.example.new")

	if got["application-identifier"] != "ABCDE12345.com.example.new" {
		t.Errorf("application-identifier = %v", got["application-identifier"])
	}
	if got["com.apple.developer.team-identifier"] != "ABCDE12345" {
		t.Errorf("team-identifier = %v", got["com.apple.developer.team-identifier"])
	}
	if got["get-task-allow"] != false {
		t.Errorf("get-task-allow should pass through unchanged, got %v", got["get-task-allow"])
	}
}

func TestBuildMergesOnlyWhenBothSidesDeclare(t *testing.T) {
	profile := map[string]interface{}{
		"aps-environment":                 "production",
		"com.apple.developer.healthkit":   true,
	}
	previous := map[string]interface{}{
		"aps-environment": "development",
		// homekit present previously but profile does not declare it below.
		"com.apple.developer.homekit": true,
	}

	got := Build(profile, previous, "ABCDE12345", "com.example.app")

	if got["aps-environment"] != "development" {
		t.Errorf("aps-environment should carry over previous value, got %v", got["aps-environment"])
	}
	if _, ok := got["com.apple.developer.homekit"]; ok {
		t.Errorf("homekit should not merge: new profile does not declare it")
	}
	if got["com.apple.developer.healthkit"] != true {
		t.Errorf("healthkit should come from new profile since previous didn't have it, got %v", got["com.apple.developer.healthkit"])
	}
}

func TestBuildNilPreviousEntitlements(t *testing.T) {
	profile := map[string]interface{}{"aps-environment": "production"}
	got := Build(profile, nil, "ABCDE12345", "com.example.app")
	if got["aps-environment"] != "production" {
		t.Errorf("with no previous entitlements the new profile's value should stand, got %v", got["aps-environment"])
	}
}
