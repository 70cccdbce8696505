package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// GenerateKey joins parts with ':'.
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashValues is the sha256 hex digest of the values formatted with two
// decimals and joined by commas. Two histories that print the same hash
// the same.
func HashValues(values []float64) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
