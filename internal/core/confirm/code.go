package confirm

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

const (
	DefaultCodeDigits = 4
	MaxCodeDigits     = 9
)

// NewCode returns a random numeric code with exactly digits digits,
// so four digits give the range 1000-9999.
func NewCode(digits int) (string, error) {
	if digits <= 0 {
		digits = DefaultCodeDigits
	}
	if digits > MaxCodeDigits {
		digits = MaxCodeDigits
	}
	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+low), nil
}

// matches compares a reply with the expected answer in constant time.
// Words are compared case-insensitively.
func matches(reply, expected string) bool {
	r := strings.ToUpper(strings.TrimSpace(reply))
	e := strings.ToUpper(expected)
	return subtle.ConstantTimeCompare([]byte(r), []byte(e)) == 1
}
