package scratch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewAndClose(t *testing.T) {
	d, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := os.Stat(d.Path()); err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}

	marker := d.Join("marker.txt")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(d.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected directory to be removed, stat err = %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	d, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestJoin(t *testing.T) {
	d, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	want := filepath.Join(d.Path(), "Payload", "App.app")
	if got := d.Join("Payload", "App.app"); got != want {
		t.Errorf("Join() = %q, want %q", got, want)
	}
}
