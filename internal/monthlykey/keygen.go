package monthlykey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// keyLength is the number of hex characters kept from the digest. Eight
// characters keeps the key human-enterable while leaving brute force to the
// attempt limiter.
const keyLength = 8

// Derive computes the monthly key for a principal and period. The output is
// deterministic for identical inputs and unlinkable without the salt: a
// SHA-256 digest over the separator-joined inputs, truncated to the first
// eight hex characters, uppercased.
func Derive(principalID string, year, month int, salt string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d-%d-%s", principalID, year, month, salt)))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:keyLength])
}

// NormalizeKey prepares a submitted key for comparison. Verification is
// case-insensitive and ignores surrounding whitespace.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
