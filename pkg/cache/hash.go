package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey builds a namespaced cache key, "prefix:sha256(parts)". The parts
// are the inputs that determine a result: the feature batch fingerprint and
// every option that changes the output. Full-length digests keep distinct
// batches from ever colliding.
func hashKey(prefix string, parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:]))
}

// Hash fingerprints a payload as a 64-character hex SHA-256 digest.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
