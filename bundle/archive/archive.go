// Package archive implements IPA archive extraction and repacking, spec.md
// §4.3 steps 1 and 9. IPAs are deflate-compressed ZIPs with a mandatory
// "Payload/<Name>.app/" prefix; stdlib archive/zip covers this fully, no
// pack example wires a third-party zip library for anything beyond what the
// standard library already does (see DESIGN.md).
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sidesign/ipasign/ipaerr"
)

const payloadPrefix = "Payload/"

// Extract unzips archivePath into destDir and returns the absolute path to
// the single ".app" bundle directly beneath "Payload/", per spec.md §4.3
// step 1. If more than one ".app" sibling exists, the lexicographically
// first is chosen and a warning is appended to warnings.
func Extract(archivePath, destDir string) (appPath string, warnings []string, err error) {
	const op = "archive.Extract"

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", nil, ipaerr.Wrap(op, ipaerr.KindNotAnArchive, err)
	}
	defer r.Close()

	sawPayload := false
	appNames := map[string]bool{}

	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, payloadPrefix) {
			continue
		}
		sawPayload = true

		rest := strings.TrimPrefix(f.Name, payloadPrefix)
		if rest == "" {
			continue
		}
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			if strings.HasSuffix(rest[:idx], ".app") {
				appNames[rest[:idx]] = true
			}
		}

		if err := extractEntry(f, destDir); err != nil {
			return "", nil, ipaerr.Wrap(op, ipaerr.KindIOFailed, err)
		}
	}

	if !sawPayload {
		return "", nil, ipaerr.New(op, ipaerr.KindNoPayload,
			fmt.Errorf("no entry in %s begins with %q", archivePath, payloadPrefix), "")
	}
	if len(appNames) == 0 {
		return "", nil, ipaerr.New(op, ipaerr.KindNoAppBundle,
			fmt.Errorf("no .app directory found directly beneath %s", payloadPrefix), "")
	}

	names := make([]string, 0, len(appNames))
	for name := range appNames {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 1 {
		warnings = append(warnings, fmt.Sprintf(
			"multiple .app bundles found under Payload/ (%s); using %s",
			strings.Join(names, ", "), names[0]))
	}

	return filepath.Join(destDir, "Payload", names[0]), warnings, nil
}

func extractEntry(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, f.Name)
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// Repack walks srcDir (which must contain a "Payload/" subdirectory) and
// writes a deflate-compressed ZIP to output, preserving the "Payload/"
// prefix on every entry per spec.md §4.3 step 9.
func Repack(srcDir, output string) error {
	const op = "archive.Repack"

	payloadRoot := filepath.Join(srcDir, "Payload")
	if _, err := os.Stat(payloadRoot); err != nil {
		return ipaerr.Wrap(op, ipaerr.KindRepackFailed, err)
	}

	out, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ipaerr.Wrap(op, ipaerr.KindRepackFailed, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if info.IsDir() {
			_, err := w.Create(name + "/")
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = zip.Deflate

		fw, err := w.CreateHeader(hdr)
		if err != nil {
			return err
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(fw, in)
		return err
	})
	if walkErr != nil {
		w.Close()
		return ipaerr.Wrap(op, ipaerr.KindRepackFailed, walkErr)
	}

	if err := w.Close(); err != nil {
		return ipaerr.Wrap(op, ipaerr.KindRepackFailed, err)
	}
	return nil
}
