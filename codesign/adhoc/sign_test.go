package adhoc

import (
	"encoding/binary"
	"os"
	"testing"
)

// buildSyntheticMachO64 constructs a minimal but well-formed 64-bit thin
// Mach-O image with a __LINKEDIT segment and a placeholder
// LC_CODE_SIGNATURE command, matching what a real Xcode-built arm64 binary
// carries even before this tool ad-hoc-signs it.
func buildSyntheticMachO64(linkeditOff, linkeditSize, codeSigOff uint64, padding int) []byte {
	const headerSize = 32
	const segCmdSize = 72 // segment_command_64 with no sections: cmd, cmdsize, segname(16), four uint64s, four uint32s
	const sigCmdSize = 16

	ncmds := uint32(2)
	sizeofcmds := uint32(segCmdSize + sigCmdSize)

	total := headerSize + int(sizeofcmds) + padding
	buf := make([]byte, total)

	binary.BigEndian.PutUint32(buf[0:4], magicMachO64)
	binary.LittleEndian.PutUint32(buf[16:20], ncmds)
	binary.LittleEndian.PutUint32(buf[20:24], sizeofcmds)

	off := headerSize
	binary.LittleEndian.PutUint32(buf[off:off+4], lcSegment64)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], segCmdSize)
	copy(buf[off+8:off+24], []byte("__LINKEDIT"))
	binary.LittleEndian.PutUint64(buf[off+40:off+48], linkeditOff)
	binary.LittleEndian.PutUint64(buf[off+48:off+56], linkeditSize)
	off += segCmdSize

	writeLinkeditDataCommand(buf[off:off+sigCmdSize], uint32(codeSigOff), 0)

	return buf
}

func TestSignThinPatchesLoadCommands(t *testing.T) {
	data := buildSyntheticMachO64(200, 56, 256, 256)

	out, err := signThin(data, "com.example.app", nil, [32]byte{}, [32]byte{})
	if err != nil {
		t.Fatalf("signThin: %v", err)
	}

	if len(out) <= len(data) {
		t.Fatalf("expected output to grow by the appended SuperBlob, got %d <= %d", len(out), len(data))
	}

	m, err := parseMachO(out)
	if err != nil {
		t.Fatalf("re-parsing signed binary: %v", err)
	}

	dataOff := binary.LittleEndian.Uint32(out[m.codeSigCmdOff+8 : m.codeSigCmdOff+12])
	dataSize := binary.LittleEndian.Uint32(out[m.codeSigCmdOff+12 : m.codeSigCmdOff+16])
	if int(dataOff)+int(dataSize) != len(out) {
		t.Errorf("LC_CODE_SIGNATURE does not point at appended blob: off=%d size=%d len=%d", dataOff, dataSize, len(out))
	}

	newLinkeditSize := binary.LittleEndian.Uint64(out[m.linkeditCmd+48 : m.linkeditCmd+56])
	if newLinkeditSize == 0 {
		t.Errorf("expected __LINKEDIT size to be updated")
	}
}

func TestSignNonMachOIsNoOp(t *testing.T) {
	path := t.TempDir() + "/not-a-binary"
	if err := os.WriteFile(path, []byte("just some resource bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := Sign(path, "com.example.app", ""); err != nil {
		t.Fatalf("Sign on non-Mach-O should be a no-op, got: %v", err)
	}
}
