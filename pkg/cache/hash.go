package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashParts digests several inputs as one. Each part is length-prefixed, so
// ("ab", "c") and ("a", "bc") hash differently.
func HashParts(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hashKey returns kind:sha256(json(parts)). Parts are plain strings and
// key option structs, which always marshal.
func hashKey(kind string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return kind + ":" + Hash(data)
}
