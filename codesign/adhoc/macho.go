// Package adhoc implements the portable ad-hoc Mach-O signing backend of
// spec.md §4.4: a pure-Go SuperBlob builder for hosts where the native
// codesign utility is unavailable. Conceptually grounded on
// cfergeau/quill's two-pass size-then-fill SuperBlob generation
// (other_examples, a standalone reference rather than a pack teacher), but
// the binary layout code below is written from scratch against the Mach-O
// structures spec.md §4.4 and §9 describe, since this module carries no
// Mach-O parsing dependency from the teacher or the rest of the pack.
package adhoc

import (
	"encoding/binary"
	"fmt"
)

// Mach-O and fat-binary magic numbers, spec.md §4.4.
const (
	magicMachO32    = 0xFEEDFACE
	magicMachO64    = 0xFEEDFACF
	magicFat        = 0xCAFEBABE
	magicFatCigam   = 0xBEBAFECA
	cpuArchABI64    = 0x01000000
)

// Load command constants needed to locate __LINKEDIT and LC_CODE_SIGNATURE.
const (
	lcSegment         = 0x1
	lcSegment64       = 0x19
	lcCodeSignature   = 0x1d
	lcReqDyld         = 0x80000000
)

// machOFile is an in-memory, mutable view of one thin (non-fat) Mach-O
// image, built for the single purpose of appending an ad-hoc code signature.
type machOFile struct {
	data    []byte // the full file content, mutated in place by Sign
	is64    bool
	ncmds   uint32
	cmdsOff int // offset of the first load command, right after the header

	linkeditOff  uint64 // file offset of the __LINKEDIT segment
	linkeditSize uint64
	linkeditCmd  int // byte offset of the __LINKEDIT segment command, for size patching

	codeSigCmdOff int    // byte offset of the LC_CODE_SIGNATURE command, 0 if absent
	textSize      uint64 // total file size covered by code, excluding any existing signature
}

// parseMachO parses a thin Mach-O image's header and load commands.
func parseMachO(data []byte) (*machOFile, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("file too small to be Mach-O")
	}

	magic := binary.BigEndian.Uint32(data[0:4])
	m := &machOFile{data: data}

	switch magic {
	case magicMachO64:
		m.is64 = true
	case magicMachO32:
		m.is64 = false
	default:
		return nil, fmt.Errorf("unsupported Mach-O magic %#x", magic)
	}

	// mach_header{,_64}: magic, cputype, cpusubtype, filetype, ncmds,
	// sizeofcmds, flags[, reserved]. All little-endian on every supported
	// target (arm64, x86_64, and their 32-bit predecessors).
	m.ncmds = binary.LittleEndian.Uint32(data[16:20])
	if m.is64 {
		m.cmdsOff = 32
	} else {
		m.cmdsOff = 28
	}

	off := m.cmdsOff
	for i := uint32(0); i < m.ncmds; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("load command %d out of bounds", i)
		}
		cmd := binary.LittleEndian.Uint32(data[off : off+4])
		cmdsize := binary.LittleEndian.Uint32(data[off+4 : off+8])

		switch cmd {
		case lcSegment64:
			name := cString(data[off+8 : off+24])
			if name == "__LINKEDIT" {
				m.linkeditOff = binary.LittleEndian.Uint64(data[off+40 : off+48])
				m.linkeditSize = binary.LittleEndian.Uint64(data[off+48 : off+56])
				m.linkeditCmd = off
			}
		case lcSegment:
			name := cString(data[off+8 : off+24])
			if name == "__LINKEDIT" {
				m.linkeditOff = uint64(binary.LittleEndian.Uint32(data[off+24 : off+28]))
				m.linkeditSize = uint64(binary.LittleEndian.Uint32(data[off+28 : off+32]))
				m.linkeditCmd = off
			}
		case lcCodeSignature:
			m.codeSigCmdOff = off
		}

		off += int(cmdsize)
	}

	if m.linkeditCmd == 0 {
		return nil, fmt.Errorf("no __LINKEDIT segment found")
	}

	if m.codeSigCmdOff != 0 {
		dataOff := binary.LittleEndian.Uint32(data[m.codeSigCmdOff+8 : m.codeSigCmdOff+12])
		m.textSize = uint64(dataOff)
	} else {
		m.textSize = uint64(len(data))
	}

	return m, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// linkeditDataCommand is the on-disk layout of LC_CODE_SIGNATURE: cmd(4),
// cmdsize(4), dataoff(4), datasize(4).
func writeLinkeditDataCommand(buf []byte, dataOff, dataSize uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], lcCodeSignature)
	binary.LittleEndian.PutUint32(buf[4:8], 16)
	binary.LittleEndian.PutUint32(buf[8:12], dataOff)
	binary.LittleEndian.PutUint32(buf[12:16], dataSize)
}
