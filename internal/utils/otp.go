package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateSecurePasscode generates a cryptographically secure 6-digit
// passcode drawn uniformly from [100000, 999999]
func GenerateSecurePasscode() (string, error) {
	// 900000 possible values, offset by 100000 so there is no leading zero
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// GenerateSessionID generates a globally unique session identifier
func GenerateSessionID() string {
	return "otp_" + uuid.NewString()
}
