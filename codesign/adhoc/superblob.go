package adhoc

import "encoding/binary"

const (
	cssSlotCodeDirectory = 0
	cssSlotRequirements  = 2
	cssSlotEntitlements  = 5
	cssSlotSignature     = 0x10000
)

// blob is one sub-blob of the SuperBlob, keyed by its CSSLOT_* type.
type blob struct {
	slot uint32
	data []byte
}

// buildEmptyRequirements returns a Requirements blob with zero requirement
// sets, the "empty designated requirement" spec.md §4.4 permits.
func buildEmptyRequirements() []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], csMagicRequirements)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)))
	binary.BigEndian.PutUint32(buf[8:12], 0) // count of requirement sets
	return buf
}

// buildEntitlementsBlob wraps entitlementsXML with the Entitlements blob
// magic 0xFADE7171, per spec.md §4.4.
func buildEntitlementsBlob(entitlementsXML []byte) []byte {
	buf := make([]byte, 8+len(entitlementsXML))
	binary.BigEndian.PutUint32(buf[0:4], csMagicEntitlements)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)))
	copy(buf[8:], entitlementsXML)
	return buf
}

// buildEmptyCMSBlob wraps an empty CMS payload in a BlobWrapper, the ad-hoc
// "signature" of spec.md §4.4: no private key is ever involved.
func buildEmptyCMSBlob() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], csMagicBlobWrapper)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)))
	return buf
}

// buildSuperBlob assembles the CS_SuperBlob: magic, total length, blob
// count, an index of (type, offset) pairs, followed by the blob bodies in
// index order, per spec.md §4.4.
func buildSuperBlob(blobs []blob) []byte {
	const indexEntrySize = 8
	headerSize := 12 + len(blobs)*indexEntrySize

	total := headerSize
	for _, b := range blobs {
		total += len(b.data)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], csMagicEmbeddedSig)
	binary.BigEndian.PutUint32(buf[4:8], uint32(total))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(blobs)))

	offset := headerSize
	indexOff := 12
	for _, b := range blobs {
		binary.BigEndian.PutUint32(buf[indexOff:indexOff+4], b.slot)
		binary.BigEndian.PutUint32(buf[indexOff+4:indexOff+8], uint32(offset))
		indexOff += indexEntrySize

		copy(buf[offset:offset+len(b.data)], b.data)
		offset += len(b.data)
	}

	return buf
}
