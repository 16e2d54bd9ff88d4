package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey hashes the parts of an update identity into a fixed-length key, so
// callback data never ends up in a Redis key verbatim. Each part is length
// prefixed: ("a:b", "c") and ("a", "b:c") are different updates.
func GenerateKey(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		s := fmt.Sprint(part)
		fmt.Fprintf(h, "%d:%s", len(s), s)
	}
	return hex.EncodeToString(h.Sum(nil))
}
