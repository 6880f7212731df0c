package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeCandidateID computes a deterministic filing candidate id using SHA256.
// Formula: SHA256(entity_id|url), url trimmed of surrounding whitespace.
// Returns hex-encoded hash (64 characters).
//
// The id matches the (entity_id, url) uniqueness rule, so a re-scan that finds
// the same document always produces the same id.
func ComputeCandidateID(entityID, url string) string {
	data := fmt.Sprintf("%s|%s", entityID, strings.TrimSpace(url))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
