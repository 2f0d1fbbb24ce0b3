package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeGenerator returns a numeric code of exactly length digits.
type CodeGenerator func(length int) (string, error)

// NumericCode draws a uniformly distributed code in [0, 10^length) from crypto/rand,
// zero-padded to length.
func NumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid otp length %d", length)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	s := n.String()
	return strings.Repeat("0", length-len(s)) + s, nil
}
