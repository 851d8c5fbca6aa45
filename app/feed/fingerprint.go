package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint identifies a listing across feeds by title, company and
// location, ignoring case and surrounding whitespace.
func Fingerprint(title, company, location string) string {
	normalized := strings.Join([]string{
		normalizeKey(title),
		normalizeKey(company),
		normalizeKey(location),
	}, "|")

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
