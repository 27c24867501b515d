package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeQuestion canonicalizes free text for cache keying: lowercase,
// trimmed, punctuation stripped, runs of whitespace collapsed to one
// space. Two questions that normalize identically share a cache entry.
func NormalizeQuestion(question string) string {
	var b strings.Builder
	b.Grow(len(question))

	lastSpace := true
	for _, r := range strings.ToLower(question) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// HashQuestion returns the SHA-256 hex digest of the normalized question.
func HashQuestion(question string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

// HashChunk derives the deduplication key for a retrieved passage from
// its document id and normalized text.
func HashChunk(documentID, text string) string {
	sum := sha256.Sum256([]byte(documentID + "\x00" + NormalizeQuestion(text)))
	return hex.EncodeToString(sum[:])
}
