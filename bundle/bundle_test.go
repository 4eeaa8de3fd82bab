package bundle

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sidesign/ipasign/codesign"
	ipacrypto "github.com/sidesign/ipasign/crypto"
	"github.com/sidesign/ipasign/identity"
	"github.com/sidesign/ipasign/plist"
	"github.com/sidesign/ipasign/profile"
)

// recordingSigner records every SignRequest it receives so tests can assert
// on spec.md §4.3 step 7's mandatory signing order without shelling out to
// a real codesign binary. Targets within one signing-order group run
// concurrently (SPEC_FULL.md §6), so appends are mutex-guarded; order is
// only meaningful across groups, not within one.
type recordingSigner struct {
	mu       sync.Mutex
	requests []codesign.SignRequest
}

func (r *recordingSigner) Sign(ctx context.Context, req codesign.SignRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func buildTestIPA(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)

	infoPlist, err := plist.EncodeBinary(map[string]interface{}{
		"CFBundleIdentifier": "com.example.old",
		"CFBundleExecutable": "Demo",
	})
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}

	entries := map[string][]byte{
		"Payload/Demo.app/Info.plist":                    infoPlist,
		"Payload/Demo.app/Demo":                           []byte("main-executable-bytes"),
		"Payload/Demo.app/Frameworks/Widget.framework/Widget": []byte("framework-bytes"),
		"Payload/Demo.app/PlugIns/Ext.appex/Ext":          []byte("plugin-bytes"),
	}
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create entry %s: %v", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("Write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
}

func testIdentity(t *testing.T) *identity.SigningIdentity {
	t.Helper()

	certDER := []byte("certificate-der-bytes")
	fp := ipacrypto.SHA1(certDER)

	cert := &ipacrypto.CertificateFields{
		TeamID:    "ABCDE12345",
		NotBefore: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		SHA1:      fp,
	}

	prof := &profile.Profile{
		TeamID:                "ABCDE12345",
		BundleIDPattern:        "com.example.*",
		CreationDate:           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate:         time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		DeveloperCertificates:  [][]byte{certDER},
		Entitlements: map[string]interface{}{
			"application-identifier": "OLDTEAM.com.example.placeholder",
		},
		Raw: []byte("mobileprovision-bytes"),
	}

	return &identity.SigningIdentity{Certificate: cert, Profile: prof}
}

func TestSignArchiveEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.ipa")
	output := filepath.Join(dir, "out.ipa")
	buildTestIPA(t, input)

	signer := &recordingSigner{}
	sid := testIdentity(t)

	result, err := SignArchive(context.Background(), input, output, sid, signer, SignOptions{})
	if err != nil {
		t.Fatalf("SignArchive: %v", err)
	}

	if result.EffectiveBundleID != "com.example.old" {
		t.Errorf("EffectiveBundleID = %q, want com.example.old (prefix already matches)", result.EffectiveBundleID)
	}

	if len(signer.requests) != 3 {
		t.Fatalf("expected 3 sign requests (framework, plugin, main), got %d", len(signer.requests))
	}
	// Mandatory order: frameworks/dylibs, then plugins, then main executable.
	if filepath.Base(signer.requests[0].Path) != "Widget" {
		t.Errorf("request[0] = %s, want framework binary first", signer.requests[0].Path)
	}
	if filepath.Base(signer.requests[1].Path) != "Ext" {
		t.Errorf("request[1] = %s, want plugin binary second", signer.requests[1].Path)
	}
	if filepath.Base(signer.requests[2].Path) != "Demo" {
		t.Errorf("request[2] = %s, want main executable last", signer.requests[2].Path)
	}
	if signer.requests[2].EntitlementsPath == "" {
		t.Error("main executable should receive an entitlements path")
	}
	if signer.requests[0].EntitlementsPath != "" || signer.requests[1].EntitlementsPath != "" {
		t.Error("only the main executable should receive an entitlements path")
	}

	verifyOutputContains(t, output, "Payload/Demo.app/embedded.mobileprovision", "mobileprovision-bytes")
}

func verifyOutputContains(t *testing.T, zipPath, entryName, wantContent string) {
	t.Helper()
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == entryName {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("Open %s: %v", entryName, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(data) != wantContent {
				t.Errorf("%s content = %q, want %q", entryName, data, wantContent)
			}
			return
		}
	}
	t.Fatalf("entry %s not found in %s", entryName, zipPath)
}
