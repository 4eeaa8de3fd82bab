package adhoc

import (
	"encoding/binary"
	"testing"
)

func TestBuildSuperBlobIndexOffsets(t *testing.T) {
	blobs := []blob{
		{slot: cssSlotCodeDirectory, data: []byte{1, 2, 3, 4}},
		{slot: cssSlotRequirements, data: buildEmptyRequirements()},
		{slot: cssSlotSignature, data: buildEmptyCMSBlob()},
	}
	sb := buildSuperBlob(blobs)

	if magic := binary.BigEndian.Uint32(sb[0:4]); magic != csMagicEmbeddedSig {
		t.Errorf("magic = %#x, want %#x", magic, csMagicEmbeddedSig)
	}
	total := binary.BigEndian.Uint32(sb[4:8])
	if int(total) != len(sb) {
		t.Errorf("total length field %d != actual %d", total, len(sb))
	}
	count := binary.BigEndian.Uint32(sb[8:12])
	if int(count) != len(blobs) {
		t.Errorf("count = %d, want %d", count, len(blobs))
	}

	for i, b := range blobs {
		entryOff := 12 + i*8
		slot := binary.BigEndian.Uint32(sb[entryOff : entryOff+4])
		offset := binary.BigEndian.Uint32(sb[entryOff+4 : entryOff+8])
		if slot != b.slot {
			t.Errorf("entry %d slot = %d, want %d", i, slot, b.slot)
		}
		got := sb[offset : int(offset)+len(b.data)]
		if string(got) != string(b.data) {
			t.Errorf("entry %d data mismatch", i)
		}
	}
}

func TestBuildEntitlementsBlobMagic(t *testing.T) {
	b := buildEntitlementsBlob([]byte("<plist/>"))
	if magic := binary.BigEndian.Uint32(b[0:4]); magic != csMagicEntitlements {
		t.Errorf("magic = %#x, want %#x", magic, csMagicEntitlements)
	}
}
