package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBindingValue hashes a request attribute for storage or comparison.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// DeviceFingerprint derives a stable device id for clients that do not send
// one. It is not a security boundary; it only groups sessions per browser.
func DeviceFingerprint(userAgent, ip string) string {
	if userAgent == "" && ip == "" {
		return ""
	}
	sum := HashBindingValue(userAgent + "\x00" + ip)
	return "fp-" + hex.EncodeToString(sum[:8])
}
