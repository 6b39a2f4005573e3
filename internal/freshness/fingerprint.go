package freshness

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FingerprintBytes returns a content fingerprint for in-memory data.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintString fingerprints a canonical string form, used for style
// settings where the identity is the configuration rather than a file.
func FingerprintString(s string) string {
	return FingerprintBytes([]byte(s))
}

// FingerprintFile fingerprints a file's contents. An absent file yields an
// empty fingerprint, which never matches a captured one.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
