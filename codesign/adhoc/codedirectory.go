package adhoc

import (
	"crypto/sha256"
	"encoding/binary"
)

const (
	csMagicCodeDirectory = 0xfade0c02
	csMagicRequirements   = 0xfade0c01
	csMagicEntitlements   = 0xfade7171
	csMagicBlobWrapper    = 0xfade0b01
	csMagicEmbeddedSig    = 0xfade0cc0

	cdHashTypeSHA256 = 2
	cdPageSize4K     = 12 // log2(4096)

	pageSize = 4096

	slotCodeDirectory = 0
	slotInfoPlist     = 1
	slotRequirements  = 2
	slotResourceDir   = 3
	slotEntitlements  = 5

	nSpecialSlots = 5
)

// buildCodeDirectory lays out a CodeDirectory blob (struct CS_CodeDirectory)
// per spec.md §4.4: version header, hash type SHA-256, page size 4096,
// identifier, special slot hashes (Info.plist, Requirements, CodeResources,
// Entitlements), and one SHA-256 hash per 4096-byte code page.
func buildCodeDirectory(identifier string, codeHashes [][32]byte, infoPlistHash, resourcesHash, entitlementsHash [32]byte, codeLimit uint32) []byte {
	const hashSize = 32

	idBytes := append([]byte(identifier), 0)

	// Header is 44 bytes (CS_CodeDirectory, version 0x20400 layout without
	// the newer scatter/teamID/codeLimit64 extensions, which ad-hoc
	// signatures do not require).
	const headerSize = 44

	identOffset := uint32(headerSize)
	hashOffset := identOffset + uint32(len(idBytes)) + uint32(nSpecialSlots*hashSize)

	totalSlots := nSpecialSlots + len(codeHashes)
	size := headerSize + len(idBytes) + totalSlots*hashSize

	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], csMagicCodeDirectory)
	binary.BigEndian.PutUint32(buf[4:8], uint32(size))
	binary.BigEndian.PutUint32(buf[8:12], 0x00020400) // version
	binary.BigEndian.PutUint32(buf[12:16], 0)          // flags: none (ad-hoc carries no CDFlags)
	binary.BigEndian.PutUint32(buf[16:20], hashOffset)
	binary.BigEndian.PutUint32(buf[20:24], identOffset)
	binary.BigEndian.PutUint32(buf[24:28], nSpecialSlots)
	binary.BigEndian.PutUint32(buf[28:32], uint32(len(codeHashes)))
	binary.BigEndian.PutUint32(buf[32:36], codeLimit)
	buf[36] = hashSize
	buf[37] = cdHashTypeSHA256
	buf[38] = 0 // platform
	buf[39] = cdPageSize4K
	binary.BigEndian.PutUint32(buf[40:44], 0) // spare2

	copy(buf[identOffset:], idBytes)

	// Special slots are stored immediately before hashOffset, in reverse
	// order: slot n lives at hashOffset-n*hashSize.
	putSpecialSlot := func(slot int, h [32]byte) {
		start := int(hashOffset) - slot*hashSize
		copy(buf[start:start+hashSize], h[:])
	}
	putSpecialSlot(slotInfoPlist, infoPlistHash)
	putSpecialSlot(slotResourceDir, resourcesHash)
	putSpecialSlot(slotEntitlements, entitlementsHash)
	// slotRequirements (2) is left zeroed: an empty designated requirement
	// hashes to the all-zero placeholder, matching the empty Requirements
	// blob built in superblob.go.

	for i, h := range codeHashes {
		start := int(hashOffset) + i*hashSize
		copy(buf[start:start+hashSize], h[:])
	}

	return buf
}

// hashPages computes one SHA-256 digest per 4096-byte page of data[:limit],
// hashing the final partial page as-is without padding, per spec.md §4.4.
func hashPages(data []byte, limit int) [][32]byte {
	var hashes [][32]byte
	for off := 0; off < limit; off += pageSize {
		end := off + pageSize
		if end > limit {
			end = limit
		}
		hashes = append(hashes, sha256.Sum256(data[off:end]))
	}
	return hashes
}
