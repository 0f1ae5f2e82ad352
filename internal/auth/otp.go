package auth

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits = 6
	// OTPTTL is how long a sent code stays redeemable.
	OTPTTL = 10 * time.Minute
)

var (
	ErrOTPExpired  = errors.New("otp expired")
	ErrOTPMismatch = errors.New("otp mismatch")
)

// GenerateOTP returns a random numeric code.
func GenerateOTP() (string, error) {
	code := make([]byte, otpDigits)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}

// HashOTP returns a bcrypt hash of the code; only the hash is stored.
func HashOTP(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckOTP verifies a submitted code against the stored hash and expiry.
func CheckOTP(hash, code string, issuedAt time.Time) error {
	if time.Since(issuedAt) > OTPTTL {
		return ErrOTPExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return ErrOTPMismatch
	}
	return nil
}
