package adhoc

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sidesign/ipasign/ipaerr"
)

// Sign reads the first 4 bytes of path and, per spec.md §4.4, either treats
// it as a non-binary resource (success, no-op) or attaches an ad-hoc
// SuperBlob. Universal (fat) binaries are signed per architecture slice.
func Sign(path, identifier, entitlementsPath string) error {
	const op = "adhoc.Sign"

	data, err := os.ReadFile(path)
	if err != nil {
		return ipaerr.Wrap(op, ipaerr.KindIOFailed, err)
	}
	if len(data) < 4 {
		return nil
	}

	magic := binary.BigEndian.Uint32(data[0:4])
	switch magic {
	case magicMachO32, magicMachO64:
		// handled below
	case magicFat, magicFatCigam:
		signed, err := signFat(data, identifier, entitlementsPath)
		if err != nil {
			return ipaerr.New(op, ipaerr.KindLinkEditEditFailed, err, "")
		}
		return os.WriteFile(path, signed, 0o755)
	default:
		return nil
	}

	entitlementsXML, err := readOptional(entitlementsPath)
	if err != nil {
		return ipaerr.Wrap(op, ipaerr.KindIOFailed, err)
	}

	infoPlistHash, resourcesHash := siblingHashes(filepath.Dir(path))

	signed, err := signThin(data, identifier, entitlementsXML, infoPlistHash, resourcesHash)
	if err != nil {
		return ipaerr.New(op, ipaerr.KindLinkEditEditFailed, err, "")
	}

	return os.WriteFile(path, signed, 0o755)
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// siblingHashes hashes Info.plist and _CodeSignature/CodeResources next to
// the binary being signed, when present, per spec.md §4.4's "slot hashes
// for Info.plist and CodeResources (empty-hash placeholder if absent)".
// This tool does not generate a CodeResources seal itself, so that slot is
// almost always the zero placeholder; an existing one from a prior
// signature is still picked up and hashed.
func siblingHashes(dir string) (infoPlistHash, resourcesHash [32]byte) {
	if data, err := os.ReadFile(filepath.Join(dir, "Info.plist")); err == nil {
		infoPlistHash = sha256.Sum256(data)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "_CodeSignature", "CodeResources")); err == nil {
		resourcesHash = sha256.Sum256(data)
	}
	return infoPlistHash, resourcesHash
}

// signThin attaches a SuperBlob to a single-architecture Mach-O image and
// returns the resulting file bytes. It assumes an LC_CODE_SIGNATURE load
// command is already present (true of every Xcode-built iOS binary, which
// must carry at least an empty ad-hoc signature to run on-device);
// inserting a brand-new load command would require shifting every
// subsequent segment's file offsets, out of scope for this portable
// fallback (see spec.md §4.4's note that the ad-hoc path need not be fully
// general).
func signThin(data []byte, identifier string, entitlementsXML []byte, infoPlistHash, resourcesHash [32]byte) ([]byte, error) {
	m, err := parseMachO(data)
	if err != nil {
		return nil, err
	}
	if m.codeSigCmdOff == 0 {
		return nil, fmt.Errorf("binary has no LC_CODE_SIGNATURE command to repoint; cannot ad-hoc sign")
	}

	codeContent := data[:m.textSize]
	codeHashes := hashPages(codeContent, len(codeContent))

	var entitlementsHash [32]byte
	if len(entitlementsXML) > 0 {
		entitlementsHash = sha256.Sum256(entitlementsXML)
	}
	var blobs []blob

	cd := buildCodeDirectory(identifier, codeHashes, infoPlistHash, resourcesHash, entitlementsHash, uint32(m.textSize))
	blobs = append(blobs, blob{slot: cssSlotCodeDirectory, data: cd})
	blobs = append(blobs, blob{slot: cssSlotRequirements, data: buildEmptyRequirements()})
	if len(entitlementsXML) > 0 {
		blobs = append(blobs, blob{slot: cssSlotEntitlements, data: buildEntitlementsBlob(entitlementsXML)})
	}
	blobs = append(blobs, blob{slot: cssSlotSignature, data: buildEmptyCMSBlob()})

	sb := buildSuperBlob(blobs)

	out := make([]byte, m.textSize+uint64(len(sb)))
	copy(out, data[:m.textSize])
	copy(out[m.textSize:], sb)

	writeLinkeditDataCommand(out[m.codeSigCmdOff:m.codeSigCmdOff+16], uint32(m.textSize), uint32(len(sb)))

	newLinkeditSize := m.textSize + uint64(len(sb)) - m.linkeditOff
	if m.is64 {
		binary.LittleEndian.PutUint64(out[m.linkeditCmd+48:m.linkeditCmd+56], newLinkeditSize)
	} else {
		binary.LittleEndian.PutUint32(out[m.linkeditCmd+28:m.linkeditCmd+32], uint32(newLinkeditSize))
	}

	return out, nil
}
