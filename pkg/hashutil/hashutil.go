package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

type HashAlgo string

const (
	HashAlgoSHA256 = "sha256"
	HashAlgoBLAKE3 = "blake3"
)

// HashBytes returns the hash of bytes as a hex string using the specified algorithm.
// Supported algorithms: "sha256" and "blake3".
//
// Page identity (the dedup key stored in page.html_content_hash) is always
// sha256; blake3 is used only for short diagnostic digests in log output.
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	switch algo {
	case HashAlgoSHA256:
		return hashBytesSha256(data), nil
	case HashAlgoBLAKE3:
		return hashBytesBlake3(data), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// PageHash returns the canonical content-identity hash for a rendered page:
// sha256 over the UTF-8 bytes, hex encoded.
func PageHash(body []byte) string {
	return hashBytesSha256(body)
}

// ShortDigest returns the first 12 hex characters of the blake3 hash,
// cheap enough to compute on every fetch for log correlation.
func ShortDigest(data []byte) string {
	return hashBytesBlake3(data)[:12]
}

func hashBytesSha256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hashBytesBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}
