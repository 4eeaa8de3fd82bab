// Package scratch manages scoped temporary directories for the bundle
// rewriter, guaranteeing removal on every exit path including error. It
// generalizes the teacher's cleanupManager (root bundle.go) from a
// background-ticker sweep of scheduled paths into a single directory scoped
// to one sign_archive call.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sidesign/ipasign/ipaerr"
)

// Dir is a temporary directory that removes itself and its contents when
// Close is called. The zero value is not usable; construct with New.
type Dir struct {
	path   string
	closed bool
}

// New creates a fresh temporary directory under os.TempDir prefixed with
// "ipasign-", following the teacher's practice of confining scratch state to
// the system temp root (securePath/isAllowedAbsolutePath in bundle.go).
func New(prefix string) (*Dir, error) {
	const op = "scratch.New"

	path, err := os.MkdirTemp("", "ipasign-"+prefix+"-")
	if err != nil {
		return nil, ipaerr.Wrap(op, ipaerr.KindIOFailed, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory's absolute path.
func (d *Dir) Path() string {
	return d.path
}

// Join joins elem onto the scratch directory's path.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// Close removes the scratch directory and everything under it. Safe to call
// more than once; subsequent calls are no-ops. Callers invoke this via
// defer immediately after New succeeds, matching spec.md §4.3 step 9's
// "removed on all exit paths, including error" requirement.
func (d *Dir) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	if err := os.RemoveAll(d.path); err != nil {
		return ipaerr.Wrap("scratch.Close", ipaerr.KindIOFailed, fmt.Errorf("removing %s: %w", d.path, err))
	}
	return nil
}
