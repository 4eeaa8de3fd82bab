package crypto

import (
	"crypto/sha1"  //nolint:gosec // Apple code-signing protocol mandates SHA-1 fingerprints alongside SHA-256.
	"crypto/sha256"
)

// SHA1 returns the 20-byte SHA-1 digest of data, used for the certificate
// fingerprint codesign expects in "-s <sha1-fingerprint>".
func SHA1(data []byte) [20]byte {
	return sha1.Sum(data)
}

// SHA256 returns the 32-byte SHA-256 digest of data, used for certificate
// fingerprints.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
