package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// maxInlineKeyLen longer keys are replaced by their SHA-256
const maxInlineKeyLen = 128

// KeyOf derives a stable identifier from arguments: their JSON encoding (map
// keys sorted, struct fields in declaration order), hashed when longer than
// 128 bytes. Values JSON cannot encode fall back to their %#v form.
func KeyOf(parts ...any) string {
	var v any = parts
	if len(parts) == 1 {
		v = parts[0]
	}
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte(fmt.Sprintf("%#v", v))
	}
	if len(raw) > maxInlineKeyLen {
		sum := sha256.Sum256(raw)
		return hex.EncodeToString(sum[:])
	}
	return string(raw)
}
