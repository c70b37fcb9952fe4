package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint builds a deterministic key identifying a semantically
// equivalent automation request. Two requests with the same user, the same
// message modulo whitespace/casing, the same entity set and the same options
// always collide.
func Fingerprint(userID, text string, entityIDs []string, options map[string]string) string {
	normalized := normalizeText(text)

	// Dedupe + sort entity ids so ordering never changes the key
	seen := make(map[string]struct{}, len(entityIDs))
	ids := make([]string, 0, len(entityIDs))
	for _, id := range entityIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Deterministic option serialization (sorted key=value pairs)
	optKeys := make([]string, 0, len(options))
	for k := range options {
		optKeys = append(optKeys, k)
	}
	sort.Strings(optKeys)
	optParts := make([]string, 0, len(optKeys))
	for _, k := range optKeys {
		optParts = append(optParts, fmt.Sprintf("%s=%s", k, options[k]))
	}

	composite := strings.Join([]string{
		userID,
		normalized,
		strings.Join(ids, ","),
		strings.Join(optParts, "&"),
	}, "|")

	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

// normalizeText trims, lowercases and collapses internal whitespace.
func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
