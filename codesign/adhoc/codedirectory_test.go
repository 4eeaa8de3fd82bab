package adhoc

import (
	"encoding/binary"
	"testing"
)

func TestBuildCodeDirectoryLayout(t *testing.T) {
	codeHashes := hashPages([]byte("hello world, this is a test page"), 32)
	cd := buildCodeDirectory("com.example.app", codeHashes, [32]byte{1}, [32]byte{2}, [32]byte{3}, 32)

	if magic := binary.BigEndian.Uint32(cd[0:4]); magic != csMagicCodeDirectory {
		t.Errorf("magic = %#x, want %#x", magic, csMagicCodeDirectory)
	}
	length := binary.BigEndian.Uint32(cd[4:8])
	if int(length) != len(cd) {
		t.Errorf("length field %d != actual %d", length, len(cd))
	}
	nSpecial := binary.BigEndian.Uint32(cd[24:28])
	if nSpecial != nSpecialSlots {
		t.Errorf("nSpecialSlots = %d, want %d", nSpecial, nSpecialSlots)
	}
	nCode := binary.BigEndian.Uint32(cd[28:32])
	if int(nCode) != len(codeHashes) {
		t.Errorf("nCodeSlots = %d, want %d", nCode, len(codeHashes))
	}

	identOffset := binary.BigEndian.Uint32(cd[20:24])
	ident := cString(cd[identOffset:])
	if ident != "com.example.app" {
		t.Errorf("identifier = %q", ident)
	}
}

func TestHashPagesPartialPage(t *testing.T) {
	data := make([]byte, pageSize+10)
	hashes := hashPages(data, len(data))
	if len(hashes) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(hashes))
	}
}

func TestHashPagesEmpty(t *testing.T) {
	if hashes := hashPages(nil, 0); len(hashes) != 0 {
		t.Errorf("expected no pages for empty input, got %d", len(hashes))
	}
}
