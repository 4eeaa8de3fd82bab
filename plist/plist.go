// Package plist reads and writes Apple property lists in both the XML and
// binary ("bplist00") encodings used throughout the signing pipeline:
// Info.plist, archived-expanded-entitlements.xcent, and the CMS-wrapped
// payload inside a provisioning profile.
//
// XML encode/decode is delegated to github.com/groob/plist. Binary encode
// and decode have no suitable third-party implementation in this module's
// dependency set, so they are hand-rolled in bplist.go and
// bplist_decode.go, generalizing the
// teacher's hand-rolled XML template writer to the binary format the spec
// requires for Info.plist rewrites.
package plist

import (
	"bytes"

	groobplist "github.com/groob/plist"
)

var binaryMagic = []byte("bplist00")

// Decode parses plist data of either encoding into v, a pointer to a struct
// or a *map[string]interface{}.
func Decode(data []byte, v interface{}) error {
	if bytes.HasPrefix(data, binaryMagic) {
		obj, err := decodeBinary(data)
		if err != nil {
			return err
		}
		return assignDecoded(obj, v)
	}
	return groobplist.Unmarshal(data, v)
}

// DecodeMap parses plist data of either encoding into a generic tree.
func DecodeMap(data []byte) (map[string]interface{}, error) {
	if bytes.HasPrefix(data, binaryMagic) {
		obj, err := decodeBinary(data)
		if err != nil {
			return nil, err
		}
		m, ok := obj.(map[string]interface{})
		if !ok {
			return nil, errNotADict
		}
		return m, nil
	}
	var m map[string]interface{}
	if err := groobplist.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeXML serializes v as an XML property list.
func EncodeXML(v interface{}) ([]byte, error) {
	return groobplist.Marshal(v)
}

// EncodeBinary serializes v (a map[string]interface{}, []interface{}, or
// scalar) as a binary ("bplist00") property list.
func EncodeBinary(v interface{}) ([]byte, error) {
	return encodeBinary(v)
}
