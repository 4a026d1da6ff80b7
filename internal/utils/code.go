package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultCodeLength is the number of digits in verification and reset codes.
const DefaultCodeLength = 6

// GenerateCode returns a uniformly random decimal code of the given length,
// zero padded, drawn from crypto/rand.
func GenerateCode(length int) (string, error) {
	if length <= 0 || length > 18 {
		length = DefaultCodeLength
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
