package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashOrRead(password string) ([]byte, error) {
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$") {
		return []byte(password), nil // already bcrypt
	}
	return bcrypt.GenerateFromPassword([]byte(password), 10)
}

// SyntheticTxHash derives a stable identifier for feed events that carry no
// native transaction id.
func SyntheticTxHash(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
