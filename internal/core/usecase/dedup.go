package usecase

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash is the dedup key of an image: lowercase hex SHA-256 of its bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
