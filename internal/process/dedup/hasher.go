package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Hasher fingerprints text into comparable hex digests.
//
// Texts shorter than the configured floor after normalization are never hashed
// by content: each call hashes a fresh unique token instead, so two near-empty
// texts can never collide.
type Hasher struct {
	minLength int
	newToken  func() string
}

// NewHasher creates a Hasher with the given normalized-length floor.
// A non-positive floor falls back to DefaultHashMinLength.
func NewHasher(minLength int) *Hasher {
	if minLength <= 0 {
		minLength = DefaultHashMinLength
	}

	return &Hasher{
		minLength: minLength,
		newToken:  uuid.NewString,
	}
}

// Hash returns the SHA-256 hex digest of the normalized text.
func (h *Hasher) Hash(text string) string {
	normalized := normalizeForHash(text)
	if utf8.RuneCountInString(normalized) < h.minLength {
		normalized = shortTextTokenPrefix + h.newToken()
	}

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])
}

// ContentHash hashes title and content together.
func (h *Hasher) ContentHash(title, content string) string {
	return h.Hash(joinText(title, content))
}

// normalizeForHash lowercases, drops punctuation and symbols, and collapses whitespace.
func normalizeForHash(text string) string {
	var b strings.Builder

	b.Grow(len(text))

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func joinText(title, content string) string {
	return strings.TrimSpace(title + " " + content)
}
