// Package credential issues and protects the temporary numeric passwords
// handed out at registration.
package credential

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
)

const (
	// Length is the number of digits in an issued credential.
	Length = 8

	minValue = 10000000
	maxValue = 99999999
)

var span = big.NewInt(maxValue - minValue + 1)

// Generate returns a credential of exactly eight digits drawn uniformly from
// [10000000, 99999999]. Leading zeros never occur. Collisions between users
// are possible and not checked.
func Generate() (string, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(r io.Reader) (string, error) {
	n, err := rand.Int(r, span)
	if err != nil {
		return "", fmt.Errorf("generate credential: %w", err)
	}
	return strconv.FormatInt(n.Int64()+minValue, 10), nil
}

// Valid reports whether s has the shape of an issued credential.
func Valid(s string) bool {
	if len(s) != Length || s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
