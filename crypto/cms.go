package crypto

import (
	"bytes"
	"errors"

	"github.com/fullsailor/pkcs7"

	"github.com/sidesign/ipasign/ipaerr"
)

var (
	xmlOpenMarker   = []byte("<?xml")
	plistOpenMarker = []byte("<plist")
	plistCloseMarker = []byte("</plist>")
)

// ExtractCMSPayload pulls the UTF-8 XML property-list payload out of a
// CMS/PKCS#7 SignedData envelope. Apple mobileprovisions always wrap exactly
// one such payload (spec.md §4.1, §9).
//
// It first tries a real ASN.1 parse via github.com/fullsailor/pkcs7, which
// correctly handles envelopes with surrounding signed attributes or
// certificates interleaved in a way that defeats a naive byte scan. If that
// parse fails — some provisioning-profile generators emit envelopes
// fullsailor/pkcs7 rejects — it falls back to the literal marker scan
// specified in spec.md §4.1: locate the earliest of "<?xml"/"<plist" and the
// last "</plist>" and return the inclusive slice.
func ExtractCMSPayload(der []byte) ([]byte, error) {
	const op = "crypto.ExtractCMSPayload"

	if p7, err := pkcs7.Parse(der); err == nil && len(p7.Content) > 0 {
		if payload, ok := scanPlistBounds(p7.Content); ok {
			return payload, nil
		}
	}

	if payload, ok := scanPlistBounds(der); ok {
		return payload, nil
	}

	return nil, ipaerr.New(op, ipaerr.KindNotACmsPlist, errors.New("no xml/plist markers found"), "")
}

// scanPlistBounds locates the earliest opening marker ("<?xml" or "<plist")
// and the last "</plist>" and returns the inclusive slice between them.
func scanPlistBounds(data []byte) ([]byte, bool) {
	start := -1
	if i := bytes.Index(data, xmlOpenMarker); i != -1 {
		start = i
	}
	if i := bytes.Index(data, plistOpenMarker); i != -1 && (start == -1 || i < start) {
		start = i
	}
	if start == -1 {
		return nil, false
	}

	end := bytes.LastIndex(data, plistCloseMarker)
	if end == -1 {
		return nil, false
	}
	end += len(plistCloseMarker)
	if end <= start {
		return nil, false
	}

	return data[start:end], true
}
