package plist

import (
	"errors"

	groobplist "github.com/groob/plist"
)

var errNotADict = errors.New("plist: top-level binary object is not a dictionary")

// assignDecoded delivers a generically-decoded binary plist object (map,
// slice, or scalar) into v. If v is already a *map[string]interface{} or
// *interface{}, it is assigned directly; otherwise the generic tree is
// round-tripped through the XML encoder so the caller's typed struct tags
// are honored by groob/plist's decoder, avoiding a second hand-written
// reflection path.
func assignDecoded(obj interface{}, v interface{}) error {
	switch dst := v.(type) {
	case *map[string]interface{}:
		m, ok := obj.(map[string]interface{})
		if !ok {
			return errNotADict
		}
		*dst = m
		return nil
	case *interface{}:
		*dst = obj
		return nil
	default:
		xmlBytes, err := groobplist.Marshal(obj)
		if err != nil {
			return err
		}
		return groobplist.Unmarshal(xmlBytes, v)
	}
}
