package plist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// bplist00 is Apple's binary property-list format: a flat object table, an
// offset table pointing into it, and a fixed 32-byte trailer describing the
// table's element widths. See CoreFoundation's CFBinaryPList.c for the
// canonical description; this implementation supports the subset of types
// the signing pipeline actually produces or consumes: nil, bool, integers,
// floats, strings, byte strings, dates, arrays, and string-keyed dicts.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// ---- encode ----

type bplistWriter struct {
	objects [][]byte // encoded object bytes, indexed by object id
}

func encodeBinary(v interface{}) ([]byte, error) {
	w := &bplistWriter{}
	top, err := w.add(v)
	if err != nil {
		return nil, err
	}
	return w.finish(top)
}

func (w *bplistWriter) add(v interface{}) (int, error) {
	switch val := v.(type) {
	case nil:
		return w.emit([]byte{0x00}), nil
	case bool:
		if val {
			return w.emit([]byte{0x09}), nil
		}
		return w.emit([]byte{0x08}), nil
	case int:
		return w.addInt(int64(val))
	case int64:
		return w.addInt(val)
	case uint64:
		return w.addInt(int64(val))
	case float64:
		return w.addReal(val)
	case float32:
		return w.addReal(float64(val))
	case time.Time:
		return w.addDate(val)
	case string:
		return w.addString(val)
	case []byte:
		return w.addData(val)
	case []interface{}:
		return w.addArray(val)
	case []string:
		arr := make([]interface{}, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return w.addArray(arr)
	case map[string]interface{}:
		return w.addDict(val)
	case map[string]bool:
		m := make(map[string]interface{}, len(val))
		for k, b := range val {
			m[k] = b
		}
		return w.addDict(m)
	case map[string]string:
		m := make(map[string]interface{}, len(val))
		for k, s := range val {
			m[k] = s
		}
		return w.addDict(m)
	default:
		return 0, fmt.Errorf("plist: unsupported binary-encode type %T", v)
	}
}

func (w *bplistWriter) emit(b []byte) int {
	w.objects = append(w.objects, b)
	return len(w.objects) - 1
}

func (w *bplistWriter) addInt(n int64) (int, error) {
	size := 8
	buf := make([]byte, 1+size)
	buf[0] = 0x10 | 3 // marker nibble 3 => 2^3 = 8 bytes
	binary.BigEndian.PutUint64(buf[1:], uint64(n))
	return w.emit(buf), nil
}

func (w *bplistWriter) addReal(f float64) (int, error) {
	buf := make([]byte, 9)
	buf[0] = 0x20 | 3 // 8-byte double
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	return w.emit(buf), nil
}

func (w *bplistWriter) addDate(t time.Time) (int, error) {
	buf := make([]byte, 9)
	buf[0] = 0x33
	secs := t.UTC().Sub(appleEpoch).Seconds()
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(secs))
	return w.emit(buf), nil
}

func (w *bplistWriter) addData(data []byte) (int, error) {
	header := sizedMarker(0x40, len(data))
	buf := append(header, data...)
	return w.emit(buf), nil
}

// addString always emits UTF-16BE (marker 0x6n) when the string contains
// non-ASCII runes, ASCII (marker 0x5n) otherwise.
func (w *bplistWriter) addString(s string) (int, error) {
	ascii := true
	for _, r := range s {
		if r > 127 {
			ascii = false
			break
		}
	}
	if ascii {
		header := sizedMarker(0x50, len(s))
		buf := append(header, []byte(s)...)
		return w.emit(buf), nil
	}

	runes := []rune(s)
	buf := sizedMarker(0x60, len(runes))
	for _, r := range runes {
		u16 := make([]byte, 2)
		binary.BigEndian.PutUint16(u16, uint16(r))
		buf = append(buf, u16...)
	}
	return w.emit(buf), nil
}

func (w *bplistWriter) addArray(items []interface{}) (int, error) {
	refs := make([]int, len(items))
	for i, item := range items {
		id, err := w.add(item)
		if err != nil {
			return 0, err
		}
		refs[i] = id
	}
	// placeholder; refs are resolved to bytes once every object id is final,
	// in finish(), via resizeRefs.
	return w.emitComposite(0xA0, len(refs), refs), nil
}

func (w *bplistWriter) addDict(m map[string]interface{}) (int, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyRefs := make([]int, len(keys))
	valRefs := make([]int, len(keys))
	for i, k := range keys {
		kid, err := w.addString(k)
		if err != nil {
			return 0, err
		}
		vid, err := w.add(m[k])
		if err != nil {
			return 0, err
		}
		keyRefs[i] = kid
		valRefs[i] = vid
	}
	return w.emitComposite(0xD0, len(keys), append(keyRefs, valRefs...)), nil
}

// emitComposite stores an array or dict object: a marker+count header
// (count is the element count — N for an array, N for a dict whose refs
// slice holds N keys followed by N values) followed by placeholder 4-byte
// big-endian object references. resizeRefs narrows these references to the
// final object-reference width once every object id is known.
func (w *bplistWriter) emitComposite(marker byte, count int, refs []int) int {
	buf := sizedMarker(marker, count)
	for _, ref := range refs {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(ref))
		buf = append(buf, b[:]...)
	}
	return w.emit(buf)
}

// sizedMarker builds the one-or-more-byte type+size header bplist uses: if
// count fits in the low nibble (0-14) it's inlined, otherwise the low
// nibble is 0xF followed by an encoded integer object for the count.
func sizedMarker(typeNibble byte, count int) []byte {
	if count < 15 {
		return []byte{typeNibble | byte(count)}
	}
	// 0xF marker followed by an int-object-style count (1-byte marker + N
	// bytes big-endian, sized to the smallest power-of-two that fits).
	width, wbytes := intWidth(count)
	buf := make([]byte, 2+wbytes)
	buf[0] = typeNibble | 0x0F
	buf[1] = 0x10 | width
	writeBigEndianInt(buf[2:], uint64(count))
	return buf
}

func intWidth(n int) (widthNibble byte, nbytes int) {
	switch {
	case n <= 0xFF:
		return 0, 1
	case n <= 0xFFFF:
		return 1, 2
	case n <= 0xFFFFFFFF:
		return 2, 4
	default:
		return 3, 8
	}
}

func writeBigEndianInt(buf []byte, v uint64) {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

// finish lays out the object table with object references resized to the
// minimum byte width that can address every object, then appends the offset
// table and trailer.
func (w *bplistWriter) finish(top int) ([]byte, error) {
	var refBytes int
	switch {
	case len(w.objects) < 256:
		refBytes = 1
	case len(w.objects) < 65536:
		refBytes = 2
	default:
		refBytes = 4
	}

	resized, err := resizeRefs(w.objects, refBytes)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString("bplist00")

	offsets := make([]uint64, len(resized))
	for i, obj := range resized {
		offsets[i] = uint64(out.Len())
		out.Write(obj)
	}

	offsetTableStart := uint64(out.Len())
	offsetIntWidth := 1
	maxOffset := offsetTableStart
	switch {
	case maxOffset < 1<<8:
		offsetIntWidth = 1
	case maxOffset < 1<<16:
		offsetIntWidth = 2
	case maxOffset < 1<<32:
		offsetIntWidth = 4
	default:
		offsetIntWidth = 8
	}
	for _, off := range offsets {
		b := make([]byte, offsetIntWidth)
		v := off
		for i := offsetIntWidth - 1; i >= 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
		out.Write(b)
	}

	// Trailer layout (32 bytes): 5 unused, sortVersion, offsetIntSize,
	// objectRefSize, numObjects(8), topObject(8), offsetTableOffset(8).
	var trailer [32]byte
	trailer[5] = 0 // sort version
	trailer[6] = byte(offsetIntWidth)
	trailer[7] = byte(refBytes)
	binary.BigEndian.PutUint64(trailer[8:16], uint64(len(resized)))
	binary.BigEndian.PutUint64(trailer[16:24], uint64(top))
	binary.BigEndian.PutUint64(trailer[24:32], offsetTableStart)

	out.Write(trailer[:])
	return out.Bytes(), nil
}

// resizeRefs rewrites every composite object's 4-byte reference placeholders
// down to refBytes-wide big-endian integers.
func resizeRefs(objects [][]byte, refBytes int) ([][]byte, error) {
	out := make([][]byte, len(objects))
	for i, obj := range objects {
		if len(obj) == 0 {
			return nil, errors.New("plist: empty object slot")
		}
		marker := obj[0] >> 4
		if marker != 0xA && marker != 0xD {
			out[i] = obj
			continue
		}
		headerLen := compositeHeaderLen(obj)
		header := obj[:headerLen]
		refsBytes := obj[headerLen:]
		numRefs := len(refsBytes) / 4
		rebuilt := make([]byte, headerLen+numRefs*refBytes)
		copy(rebuilt, header)
		for r := 0; r < numRefs; r++ {
			val := binary.BigEndian.Uint32(refsBytes[r*4 : r*4+4])
			dst := rebuilt[headerLen+r*refBytes : headerLen+(r+1)*refBytes]
			v := uint64(val)
			for b := refBytes - 1; b >= 0; b-- {
				dst[b] = byte(v)
				v >>= 8
			}
		}
		out[i] = rebuilt
	}
	return out, nil
}

// compositeHeaderLen reports how many leading bytes of an array/dict object
// are the type+size header (1, or 2+N for the extended-count form).
func compositeHeaderLen(obj []byte) int {
	if obj[0]&0x0F != 0x0F {
		return 1
	}
	// extended form: obj[1] is an int-object marker; its low nibble encodes
	// log2(byte width).
	width := 1 << (obj[1] & 0x0F)
	return 2 + width
}
