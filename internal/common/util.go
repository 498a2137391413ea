package common

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// MakeRandHexString returns size random bytes encoded as hex (2*size chars).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandDigits returns a string of n random decimal digits. The first digit
// is never zero so the value keeps its length when treated as a number.
func MakeRandDigits(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.Grow(n)

	for i := 0; i < n; i++ {
		max, offset := int64(10), int64(0)
		if i == 0 {
			max, offset = 9, 1
		}
		d, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + d.Int64() + offset))
	}

	return sb.String(), nil
}

// WipeByteArray overwrites b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
