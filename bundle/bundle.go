// Package bundle implements the Bundle Rewriter (C3): extracting an IPA,
// mutating its Info.plist and entitlements, replacing its embedded
// provisioning profile, invoking the code signer over every binary in the
// mandatory order, and repacking the result. Grounded on the teacher's root
// bundle.go orchestration and internal/bundle/*, generalized from a macOS
// .app launcher to an iOS .app re-signer.
package bundle

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sidesign/ipasign/bundle/archive"
	"github.com/sidesign/ipasign/bundle/entitlements"
	"github.com/sidesign/ipasign/bundle/scratch"
	"github.com/sidesign/ipasign/codesign"
	"github.com/sidesign/ipasign/identity"
	"github.com/sidesign/ipasign/ipaerr"
	"github.com/sidesign/ipasign/plist"
	"github.com/sidesign/ipasign/profile"
)

const entitlementsFileName = "archived-expanded-entitlements.xcent"
const embeddedProfileName = "embedded.mobileprovision"

// AppInfo is the subset of Info.plist keys the rewriter inspects or
// mutates, per spec.md §3.
type AppInfo struct {
	BundleID      string
	BundleVersion string
	Executable    string
}

// SignOptions configures a single sign_archive call, spec.md §4.3 and the
// "options" bag of spec.md §6.
type SignOptions struct {
	BundleIDOverride string
	SkipValidation   bool
}

// SignResult reports the outcome of sign_archive, including any warnings
// recorded along the way (e.g. spec.md §4.3 step 1's multiple-.app case).
type SignResult struct {
	OutputPath        string
	EffectiveBundleID string
	Warnings          []string
}

// SignArchive implements the C3 operation of spec.md §4.3:
// sign_archive(input, output, identity, bundle_id_override?).
func SignArchive(ctx context.Context, input, output string, sid *identity.SigningIdentity, signer codesign.Signer, opts SignOptions) (*SignResult, error) {
	const op = "bundle.SignArchive"

	if err := sid.Validate(time.Now(), opts.SkipValidation); err != nil {
		return nil, err
	}

	scr, err := scratch.New("sign")
	if err != nil {
		return nil, err
	}
	defer scr.Close()

	appPath, warnings, err := archive.Extract(input, scr.Path())
	if err != nil {
		return nil, err
	}

	infoPlistPath := filepath.Join(appPath, "Info.plist")
	infoMap, err := readPlistMap(infoPlistPath, ipaerr.KindMissingInfoPlist)
	if err != nil {
		return nil, err
	}

	originalBundleID, _ := infoMap["CFBundleIdentifier"].(string)

	effectiveBundleID := opts.BundleIDOverride
	if effectiveBundleID == "" {
		effectiveBundleID = sid.Profile.EffectiveBundleID(originalBundleID)
	}

	if effectiveBundleID != originalBundleID {
		infoMap["CFBundleIdentifier"] = effectiveBundleID
		if err := writePlistMapBinary(infoPlistPath, infoMap); err != nil {
			return nil, ipaerr.Wrap(op, ipaerr.KindUnwritablePlist, err)
		}
	}

	previousEntitlements, err := readPreviousEntitlements(appPath)
	if err != nil {
		return nil, err
	}

	merged := entitlements.Build(sid.Profile.Entitlements, previousEntitlements, sid.Profile.TeamID, effectiveBundleID)
	entitlementsPath := filepath.Join(appPath, entitlementsFileName)
	entitlementsXML, err := plist.EncodeXML(merged)
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindUnwritablePlist, err)
	}
	if err := os.WriteFile(entitlementsPath, entitlementsXML, 0o644); err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindUnwritablePlist, err)
	}

	if err := os.WriteFile(filepath.Join(appPath, embeddedProfileName), sid.Profile.Raw, 0o644); err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindUnwritablePlist, err)
	}

	groups, err := buildSigningPlan(appPath, effectiveBundleID, entitlementsPath)
	if err != nil {
		return nil, err
	}

	fingerprint := hex.EncodeToString(sid.Certificate.SHA1[:])
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, ipaerr.New(op, ipaerr.KindCancelled, err, "cancelled between binaries")
		}
		if err := signGroup(ctx, group, signer, fingerprint, op); err != nil {
			return nil, err
		}
	}

	if err := archive.Repack(scr.Path(), output); err != nil {
		return nil, err
	}

	return &SignResult{
		OutputPath:        output,
		EffectiveBundleID: effectiveBundleID,
		Warnings:          warnings,
	}, nil
}

// signTarget is one binary to pass to C4, in the mandatory order of spec.md
// §4.3 step 7.
type signTarget struct {
	path             string
	identifier       string
	entitlementsPath string // empty unless this is the main executable
}

// maxParallelSigners bounds the fan-out within one signing-order group, the
// errgroup-style concurrency of SPEC_FULL.md §6: the binaries of one group
// run in parallel, and the groups run one after another.
const maxParallelSigners = 4

// signGroup signs every target in group concurrently, bounded to
// maxParallelSigners in flight, then waits for the whole group before
// returning. The group boundary is SignArchive's cancellation checkpoint
// (spec.md §5: "checks for cancellation between binaries") — a binary
// already in flight is not interrupted, but no new one in this or a later
// group starts once ctx is done.
func signGroup(ctx context.Context, group []signTarget, signer codesign.Signer, fingerprint, op string) error {
	if len(group) == 0 {
		return nil
	}

	sem := make(chan struct{}, maxParallelSigners)
	var wg sync.WaitGroup
	errs := make(chan error, len(group))

	for _, target := range group {
		if err := ctx.Err(); err != nil {
			errs <- ipaerr.New(op, ipaerr.KindCancelled, err, "cancelled between binaries")
			continue
		}
		select {
		case <-ctx.Done():
			errs <- ipaerr.New(op, ipaerr.KindCancelled, ctx.Err(), "cancelled between binaries")
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(target signTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			req := codesign.SignRequest{
				Path:             target.path,
				Identifier:       target.identifier,
				Fingerprint:      fingerprint,
				EntitlementsPath: target.entitlementsPath,
			}
			if err := signer.Sign(ctx, req); err != nil {
				errs <- ipaerr.New(op, ipaerr.KindBinarySignFailed, fmt.Errorf("signing %s: %w", target.path, err), "")
			}
		}(target)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// buildSigningPlan walks appPath and groups targets into the mandatory
// signing order of spec.md §4.3 step 7: frameworks and bare dylibs, then
// plugins, then the main executable, so that an outer signature is always
// computed after every binary it embeds is signed. Each returned group may
// be signed concurrently within itself.
func buildSigningPlan(appPath, bundleID, entitlementsPath string) ([][]signTarget, error) {
	var frameworks, plugins []signTarget

	frameworksDir := filepath.Join(appPath, "Frameworks")
	if entries, err := os.ReadDir(frameworksDir); err == nil {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			full := filepath.Join(frameworksDir, e.Name())
			switch {
			case strings.HasSuffix(e.Name(), ".framework"):
				bin := filepath.Join(full, strings.TrimSuffix(e.Name(), ".framework"))
				frameworks = append(frameworks, signTarget{path: bin, identifier: stem(e.Name())})
			case strings.HasSuffix(e.Name(), ".dylib"):
				frameworks = append(frameworks, signTarget{path: full, identifier: stem(e.Name())})
			}
		}
	}

	pluginsDir := filepath.Join(appPath, "PlugIns")
	if entries, err := os.ReadDir(pluginsDir); err == nil {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".appex") {
				continue
			}
			full := filepath.Join(pluginsDir, e.Name())
			bin := filepath.Join(full, strings.TrimSuffix(e.Name(), ".appex"))
			plugins = append(plugins, signTarget{path: bin, identifier: stem(e.Name())})
		}
	}

	mainExecName, err := mainExecutableName(appPath)
	if err != nil {
		return nil, err
	}
	mainTarget := signTarget{
		path:             filepath.Join(appPath, mainExecName),
		identifier:       bundleID,
		entitlementsPath: entitlementsPath,
	}

	return [][]signTarget{frameworks, plugins, {mainTarget}}, nil
}

func mainExecutableName(appPath string) (string, error) {
	const op = "bundle.mainExecutableName"

	infoMap, err := readPlistMap(filepath.Join(appPath, "Info.plist"), ipaerr.KindMissingInfoPlist)
	if err != nil {
		return "", err
	}
	name, _ := infoMap["CFBundleExecutable"].(string)
	if name == "" {
		return "", ipaerr.New(op, ipaerr.KindMissingInfoPlist, fmt.Errorf("Info.plist has no CFBundleExecutable"), "")
	}
	return name, nil
}

func stem(name string) string {
	return strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(name, ".framework"), ".dylib"), ".appex")
}

func readPlistMap(path string, missingKind ipaerr.Kind) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ipaerr.Wrap("bundle.readPlistMap", missingKind, err)
	}
	m, err := plist.DecodeMap(data)
	if err != nil {
		return nil, ipaerr.Wrap("bundle.readPlistMap", missingKind, err)
	}
	return m, nil
}

func writePlistMapBinary(path string, m map[string]interface{}) error {
	data, err := plist.EncodeBinary(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// readPreviousEntitlements reads the Entitlements dict of the app's existing
// embedded.mobileprovision, if present, for the merge policy of spec.md §4.3
// step 5. SignArchive calls it before the new profile replaces that file. A
// fresh app with no prior profile has none.
func readPreviousEntitlements(appPath string) (map[string]interface{}, error) {
	path := filepath.Join(appPath, embeddedProfileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ipaerr.Wrap("bundle.readPreviousEntitlements", ipaerr.KindUnwritablePlist, err)
	}
	prev, err := profile.Parse(data)
	if err != nil {
		return nil, err
	}
	return prev.Entitlements, nil
}
