package misc

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SumSHA256 signs value with key; the hex digest goes into the HashSHA256 header.
// value is not modified.
func SumSHA256(value []byte, key string) string {
	h := sha256.New()
	h.Write(value)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySHA256 reports whether sum is the SumSHA256 signature of value.
// The hex comparison is case-insensitive and constant-time.
func VerifySHA256(value []byte, key, sum string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(sum))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(SumSHA256(value, key))
	return subtle.ConstantTimeCompare(got, want) == 1
}
