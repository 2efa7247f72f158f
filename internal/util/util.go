package util

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Digits is the alphabet used for numeric identifiers.
const Digits = "0123456789"

// RandomString draws length symbols uniformly from alphabet using crypto/rand.
func RandomString(alphabet string, length int) (string, error) {
	return randomFrom(rand.Reader, alphabet, length)
}

// RandomDigits returns a zero-padded decimal string of the given length.
func RandomDigits(length int) (string, error) {
	return randomFrom(rand.Reader, Digits, length)
}

// randomFrom uses rejection sampling so every symbol is equally likely
// even when the alphabet size does not divide 256.
func randomFrom(source io.Reader, alphabet string, length int) (string, error) {
	if length <= 0 {
		return "", errors.Errorf("invalid length %d", length)
	}
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", errors.Errorf("alphabet must have 2..256 symbols, got %d", len(alphabet))
	}

	limit := 256 - 256%len(alphabet)

	var out strings.Builder
	out.Grow(length)

	buf := make([]byte, length)
	for out.Len() < length {
		if _, err := io.ReadFull(source, buf); err != nil {
			return "", errors.Wrap(err, "failed to read random bytes")
		}

		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out.WriteByte(alphabet[int(b)%len(alphabet)])
			if out.Len() == length {
				break
			}
		}
	}

	return out.String(), nil
}
