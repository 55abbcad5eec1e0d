package attribute

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// DynamicKeyPrefix tags keys derived from a digest because nothing of the
// raw text survived normalization.
const DynamicKeyPrefix = "dyn_"

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)
	disallowed    = regexp.MustCompile(`[^a-z0-9_]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// NormalizeKey turns an arbitrary display string into a lowercase snake_case
// key over [a-z0-9_]. Input with no usable characters, such as punctuation or
// non-Latin script, maps to dyn_ plus the first 8 hex digits of its SHA-1.
// The result is deterministic and NormalizeKey(NormalizeKey(s)) == NormalizeKey(s).
func NormalizeKey(raw string) string {
	original := strings.TrimSpace(raw)

	key := strings.ToLower(original)
	key = whitespaceRun.ReplaceAllString(key, "_")
	key = disallowed.ReplaceAllString(key, "")
	key = underscoreRun.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if key != "" {
		return key
	}

	seed := original
	if seed == "" {
		seed = "empty"
	}
	sum := sha1.Sum([]byte(seed))
	return DynamicKeyPrefix + hex.EncodeToString(sum[:])[:8]
}
