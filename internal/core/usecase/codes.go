package usecase

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// maxCodeAttempts bounds how often a generated serial/number/PIN is retried
// after a uniqueness conflict before the operation gives up.
const maxCodeAttempts = 5

// Ambiguous characters (0/O, 1/I) are excluded from serials because store
// staff read them off physical bars.
const serialCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("random digit: %w", err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

func randomFromCharset(n int, charset string) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random char: %w", err)
		}
		buf[i] = charset[idx.Int64()]
	}
	return string(buf), nil
}

func newSerial() (string, error) {
	s, err := randomFromCharset(10, serialCharset)
	if err != nil {
		return "", err
	}
	return "BAR-" + s, nil
}

func newAppointmentNumber() (string, error) {
	s, err := randomDigits(8)
	if err != nil {
		return "", err
	}
	return "APT-" + s, nil
}

// newPIN is generated independently of the appointment number so neither
// can be derived from the other.
func newPIN() (string, error) {
	return randomDigits(6)
}
