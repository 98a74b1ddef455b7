package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const OTPDigits = 6

var otpUpperBound = big.NewInt(1_000_000)

// GenerateOTP returns a zero-padded numeric one-time code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpUpperBound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}
