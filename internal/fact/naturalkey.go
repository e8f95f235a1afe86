package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"cybnity/internal/validator"
)

// DefaultMinLength is the identifier length produced for fact types.
const DefaultMinLength = 64

// NaturalKey transforms value into a location independent identifier: lower
// cased, stripped of anything that is not a letter or digit, and padded up to
// minLength with a filler derived from the cleaned key itself. The same value
// always produces the same key, in any process.
func NaturalKey(value string, minLength int) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	key := b.String()
	if key == "" {
		return "", fmt.Errorf("natural key of %q is empty: %w", value, validator.ErrInvalidArgument)
	}

	missing := minLength - len([]rune(key))
	if missing <= 0 {
		return key, nil
	}

	b.Reset()
	b.WriteString(key)
	seed := sha256.Sum256([]byte(key))
	for missing > 0 {
		filler := hex.EncodeToString(seed[:])
		if len(filler) > missing {
			filler = filler[:missing]
		}
		b.WriteString(filler)
		missing -= len(filler)
		seed = sha256.Sum256(seed[:])
	}

	return b.String(), nil
}
