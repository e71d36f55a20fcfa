package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// PinLength is the number of digits in a session pin.
const PinLength = 6

var (
	pinSpace   = big.NewInt(1_000_000)
	pinPattern = regexp.MustCompile(`^\d{6}$`)
)

// PinGenerator produces candidate pins. Uniqueness is enforced by the
// registry, not the generator.
type PinGenerator func() (string, error)

// RandomPin returns a zero-padded 6-digit pin drawn from crypto/rand.
func RandomPin() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", PinLength, n.Int64()), nil
}

// ValidPin reports whether s is a well-formed pin.
func ValidPin(s string) bool {
	return pinPattern.MatchString(s)
}
