package plist

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

type bplistReader struct {
	data       []byte
	offsets    []uint64
	offsetSize int
	refSize    int
}

// decodeBinary parses a bplist00 document into Go values: map[string]interface{},
// []interface{}, string, bool, int64, float64, []byte, or time.Time.
func decodeBinary(data []byte) (interface{}, error) {
	if len(data) < 40 {
		return nil, fmt.Errorf("plist: binary plist too short")
	}
	trailer := data[len(data)-32:]
	offsetIntSize := int(trailer[6])
	objectRefSize := int(trailer[7])
	numObjects := binary.BigEndian.Uint64(trailer[8:16])
	topObject := binary.BigEndian.Uint64(trailer[16:24])
	offsetTableOffset := binary.BigEndian.Uint64(trailer[24:32])

	if offsetIntSize == 0 || objectRefSize == 0 {
		return nil, fmt.Errorf("plist: invalid trailer widths")
	}

	r := &bplistReader{data: data, offsetSize: offsetIntSize, refSize: objectRefSize}
	r.offsets = make([]uint64, numObjects)
	pos := offsetTableOffset
	for i := uint64(0); i < numObjects; i++ {
		r.offsets[i] = readUint(data[pos:pos+uint64(offsetIntSize)], offsetIntSize)
		pos += uint64(offsetIntSize)
	}

	return r.readObject(topObject)
}

func readUint(b []byte, size int) uint64 {
	var v uint64
	for i := 0; i < size; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (r *bplistReader) readObject(id uint64) (interface{}, error) {
	if id >= uint64(len(r.offsets)) {
		return nil, fmt.Errorf("plist: object id %d out of range", id)
	}
	off := r.offsets[id]
	marker := r.data[off]
	typeNibble := marker >> 4
	infoNibble := marker & 0x0F

	switch typeNibble {
	case 0x0:
		switch infoNibble {
		case 0x0:
			return nil, nil
		case 0x8:
			return false, nil
		case 0x9:
			return true, nil
		default:
			return nil, nil
		}
	case 0x1: // int
		size := 1 << infoNibble
		v := readUint(r.data[off+1:off+1+uint64(size)], size)
		return int64(v), nil
	case 0x2: // real
		size := 1 << infoNibble
		bits := readUint(r.data[off+1:off+1+uint64(size)], size)
		if size == 4 {
			return float64(math.Float32frombits(uint32(bits))), nil
		}
		return math.Float64frombits(bits), nil
	case 0x3: // date
		bits := readUint(r.data[off+1:off+9], 8)
		secs := math.Float64frombits(bits)
		return appleEpoch.Add(time.Duration(secs * float64(time.Second))), nil
	case 0x4: // data
		count, headerLen := r.readCount(off, infoNibble)
		start := off + uint64(headerLen)
		return append([]byte(nil), r.data[start:start+count]...), nil
	case 0x5: // ASCII string
		count, headerLen := r.readCount(off, infoNibble)
		start := off + uint64(headerLen)
		return string(r.data[start : start+count]), nil
	case 0x6: // UTF-16BE string
		count, headerLen := r.readCount(off, infoNibble)
		start := off + uint64(headerLen)
		runes := make([]rune, count)
		for i := uint64(0); i < count; i++ {
			runes[i] = rune(binary.BigEndian.Uint16(r.data[start+i*2 : start+i*2+2]))
		}
		return string(runes), nil
	case 0xA: // array
		count, headerLen := r.readCount(off, infoNibble)
		start := off + uint64(headerLen)
		arr := make([]interface{}, count)
		for i := uint64(0); i < count; i++ {
			refOff := start + i*uint64(r.refSize)
			ref := readUint(r.data[refOff:refOff+uint64(r.refSize)], r.refSize)
			item, err := r.readObject(ref)
			if err != nil {
				return nil, err
			}
			arr[i] = item
		}
		return arr, nil
	case 0xD: // dict
		count, headerLen := r.readCount(off, infoNibble)
		start := off + uint64(headerLen)
		m := make(map[string]interface{}, count)
		for i := uint64(0); i < count; i++ {
			keyRefOff := start + i*uint64(r.refSize)
			valRefOff := start + (count+i)*uint64(r.refSize)
			keyRef := readUint(r.data[keyRefOff:keyRefOff+uint64(r.refSize)], r.refSize)
			valRef := readUint(r.data[valRefOff:valRefOff+uint64(r.refSize)], r.refSize)
			key, err := r.readObject(keyRef)
			if err != nil {
				return nil, err
			}
			val, err := r.readObject(valRef)
			if err != nil {
				return nil, err
			}
			keyStr, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("plist: dict key is not a string")
			}
			m[keyStr] = val
		}
		return m, nil
	default:
		return nil, fmt.Errorf("plist: unsupported object marker 0x%x", marker)
	}
}

// readCount reads the element/byte count that follows a composite/string/
// data marker: inline in the low nibble if < 15, otherwise an encoded int
// object immediately after the marker byte.
func (r *bplistReader) readCount(off uint64, infoNibble byte) (count uint64, headerLen int) {
	if infoNibble != 0x0F {
		return uint64(infoNibble), 1
	}
	intMarker := r.data[off+1]
	size := 1 << (intMarker & 0x0F)
	count = readUint(r.data[off+2:off+2+uint64(size)], size)
	return count, 2 + size
}
