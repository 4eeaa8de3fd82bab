package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"

	"golang.org/x/crypto/pkcs12"

	"github.com/sidesign/ipasign/ipaerr"
)

// ParseP12 decrypts a PKCS#12 container and returns the leaf certificate's
// fields together with its private key in DER form. The supplied password
// is tried verbatim, including the empty string, before the container is
// declared undecryptable — spec.md §4.1: "empty string is a valid password
// and must be tried as such before failing".
func ParseP12(der []byte, password string) (*CertificateFields, []byte, error) {
	const op = "crypto.ParseP12"

	key, cert, err := pkcs12.Decode(der, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, ipaerr.New(op, ipaerr.KindBadPassword, err, "verify the certificate export password")
		}
		return nil, nil, ipaerr.New(op, ipaerr.KindMalformedP12, err, "")
	}
	if cert == nil {
		return nil, nil, ipaerr.Wrap(op, ipaerr.KindMalformedP12, errors.New("no leaf certificate in container"))
	}

	fields, err := ParseX509DER(cert.Raw)
	if err != nil {
		return nil, nil, err
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	var keyDER []byte
	if ok {
		keyDER = x509.MarshalPKCS1PrivateKey(rsaKey)
	} else {
		keyDER, err = x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, nil, ipaerr.Wrap(op, ipaerr.KindMalformedP12, err)
		}
	}

	return fields, keyDER, nil
}
