package notefile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Hash returns the lowercase hex SHA-256 digest of data. This is the
// content hash stored on ledger entries for change detection.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the content hash of the file at path.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for hashing: %w", path, err)
	}
	return Hash(data), nil
}
