package adhoc

import (
	"encoding/binary"
	"errors"
)

// fatArch mirrors struct fat_arch: cputype, cpusubtype, offset, size,
// align, all big-endian per the universal binary format.
type fatArch struct {
	cpuType, cpuSubtype uint32
	offset, size        uint32
	align               uint32
}

// signFat re-signs each architecture slice of a universal binary
// independently and rewrites the fat_arch table's offsets and sizes, per
// spec.md §4.4's "universal-binary case requires performing this process
// per architecture slice and rewriting the fat_arch offsets".
func signFat(data []byte, identifier string, entitlementsPath string) ([]byte, error) {
	nArch := binary.BigEndian.Uint32(data[4:8])

	archs := make([]fatArch, nArch)
	off := 8
	for i := range archs {
		archs[i] = fatArch{
			cpuType:    binary.BigEndian.Uint32(data[off : off+4]),
			cpuSubtype: binary.BigEndian.Uint32(data[off+4 : off+8]),
			offset:     binary.BigEndian.Uint32(data[off+8 : off+12]),
			size:       binary.BigEndian.Uint32(data[off+12 : off+16]),
			align:      binary.BigEndian.Uint32(data[off+16 : off+20]),
		}
		off += 20
	}

	entitlementsXML, err := readOptional(entitlementsPath)
	if err != nil {
		return nil, err
	}

	signedSlices := make([][]byte, nArch)
	for i, a := range archs {
		slice := data[a.offset : a.offset+a.size]
		infoPlistHash, resourcesHash := [32]byte{}, [32]byte{}

		m, err := parseMachO(slice)
		if err != nil {
			return nil, err
		}
		if m.codeSigCmdOff == 0 {
			return nil, errNoCodeSignatureCmd
		}

		signed, err := signThin(slice, identifier, entitlementsXML, infoPlistHash, resourcesHash)
		if err != nil {
			return nil, err
		}
		signedSlices[i] = signed
	}

	headerSize := 8 + int(nArch)*20
	out := make([]byte, headerSize)
	binary.BigEndian.PutUint32(out[0:4], binary.BigEndian.Uint32(data[0:4]))
	binary.BigEndian.PutUint32(out[4:8], nArch)

	cursor := headerSize
	entryOff := 8
	for i, a := range archs {
		align := uint32(1) << a.align
		if align == 0 {
			align = 1
		}
		cursor = alignUp(cursor, int(align))

		signed := signedSlices[i]
		out = append(out, make([]byte, cursor-len(out))...)
		out = append(out, signed...)

		binary.BigEndian.PutUint32(out[entryOff:entryOff+4], a.cpuType)
		binary.BigEndian.PutUint32(out[entryOff+4:entryOff+8], a.cpuSubtype)
		binary.BigEndian.PutUint32(out[entryOff+8:entryOff+12], uint32(cursor))
		binary.BigEndian.PutUint32(out[entryOff+12:entryOff+16], uint32(len(signed)))
		binary.BigEndian.PutUint32(out[entryOff+16:entryOff+20], a.align)
		entryOff += 20

		cursor += len(signed)
	}

	return out, nil
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

var errNoCodeSignatureCmd = errors.New("architecture slice has no LC_CODE_SIGNATURE command to repoint; cannot ad-hoc sign")
