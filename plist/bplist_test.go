package plist

import (
	"reflect"
	"testing"
	"time"
)

func TestBinaryRoundTripScalarDict(t *testing.T) {
	in := map[string]interface{}{
		"CFBundleIdentifier": "com.example.demo",
		"CFBundleVersion":    "1.0",
		"GetTaskAllow":       true,
		"BuildNumber":        int64(42),
	}

	data, err := EncodeBinary(in)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	if string(data[:8]) != "bplist00" {
		t.Fatalf("missing bplist00 magic, got %q", data[:8])
	}

	got, err := DecodeMap(data)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	for k, want := range in {
		if got[k] != want {
			t.Errorf("key %q = %v (%T), want %v (%T)", k, got[k], got[k], want, want)
		}
	}
}

func TestBinaryRoundTripNestedArrayAndDict(t *testing.T) {
	in := map[string]interface{}{
		"ProvisionedDevices": []interface{}{"AAAA", "BBBB", "CCCC"},
		"Entitlements": map[string]interface{}{
			"application-identifier":          "ABCDE12345.com.example.demo",
			"com.apple.developer.team-identifier": "ABCDE12345",
		},
	}

	data, err := EncodeBinary(in)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	got, err := DecodeMap(data)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}

	devices, ok := got["ProvisionedDevices"].([]interface{})
	if !ok || len(devices) != 3 {
		t.Fatalf("ProvisionedDevices = %#v", got["ProvisionedDevices"])
	}
	if devices[0] != "AAAA" || devices[2] != "CCCC" {
		t.Errorf("unexpected device order: %#v", devices)
	}

	ent, ok := got["Entitlements"].(map[string]interface{})
	if !ok {
		t.Fatalf("Entitlements = %#v", got["Entitlements"])
	}
	if ent["application-identifier"] != "ABCDE12345.com.example.demo" {
		t.Errorf("unexpected entitlements: %#v", ent)
	}
}

func TestBinaryRoundTripManyEntries(t *testing.T) {
	// Exercise the extended (>=15 element) count encoding path.
	arr := make([]interface{}, 20)
	for i := range arr {
		arr[i] = "device-" + string(rune('A'+i))
	}
	in := map[string]interface{}{"Devices": arr}

	data, err := EncodeBinary(in)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	got, err := DecodeMap(data)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	decoded, ok := got["Devices"].([]interface{})
	if !ok || len(decoded) != 20 {
		t.Fatalf("Devices = %#v", got["Devices"])
	}
	if !reflect.DeepEqual(decoded[0], arr[0]) || !reflect.DeepEqual(decoded[19], arr[19]) {
		t.Errorf("round trip mismatch: %#v vs %#v", decoded, arr)
	}
}

func TestBinaryRoundTripDate(t *testing.T) {
	want := time.Date(2027, 3, 14, 9, 30, 0, 0, time.UTC)
	in := map[string]interface{}{"ExpirationDate": want}

	data, err := EncodeBinary(in)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	got, err := DecodeMap(data)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	gotTime, ok := got["ExpirationDate"].(time.Time)
	if !ok {
		t.Fatalf("ExpirationDate = %#v", got["ExpirationDate"])
	}
	if gotTime.Sub(want).Abs() > time.Second {
		t.Errorf("ExpirationDate = %v, want %v", gotTime, want)
	}
}
