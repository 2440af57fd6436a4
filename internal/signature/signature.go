// Package signature derives stable identity keys from event titles so that
// the same real-world event scraped from different sources reconciles to a
// single canonical record.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Key identifies one canonical event. Two titles that normalize to the same
// string share a Key; that is the intended duplicate-detection behavior, and
// it also means two genuinely different events with identical normalized
// titles collapse into one. The latter is a known limitation of title-only
// identity.
type Key string

var (
	// 24-hour clock fragments sources embed in titles ("Koncert 19:30").
	clockRe = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	// Everything that is not a Unicode word character or whitespace.
	// Titles are mostly Polish; ASCII \w would strip diacritics.
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Normalize reduces a title to its comparison form: lowercased, clock
// fragments removed, punctuation stripped, whitespace collapsed and trimmed.
// Clock removal runs before the punctuation strip; stripping first would
// turn "19:30" into "1930" and keep it in the signature.
func Normalize(title string) string {
	s := strings.ToLower(title)
	s = clockRe.ReplaceAllString(s, " ")
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Compute hashes the normalized title into a compact fixed-width key.
// SHA-256 truncated to 16 hex characters keeps keys short while making an
// accidental collision between distinct normalized titles negligible.
func Compute(title string) Key {
	sum := sha256.Sum256([]byte(Normalize(title)))
	return Key(hex.EncodeToString(sum[:8]))
}
