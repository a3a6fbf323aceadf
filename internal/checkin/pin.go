package checkin

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PINLength is the number of digits in an issued lesson PIN.
const PINLength = 6

// GeneratePIN returns a zero-padded numeric PIN from a CSPRNG. Short
// enough to type from a projector slide, random enough that guessing
// inside the validity window is impractical.
func GeneratePIN() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < PINLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", PINLength, n), nil
}
