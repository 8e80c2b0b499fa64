// internal/content/digest.go
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// DigestSize is the width of every digest in hex characters.
const DigestSize = sha256.Size * 2

// Hasher yields the digest of a file on disk.
type Hasher interface {
	DigestFile(path string) (string, error)
}

// Digest returns the lowercase hex SHA-256 of content, always DigestSize
// characters wide.
func Digest(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// CommitID derives a commit identifier from file digests taken in index
// order. Digests are concatenated without a separator.
func CommitID(digests []string) string {
	return Digest([]byte(strings.Join(digests, "")))
}

// IsDigest reports whether s looks like a digest produced by Digest.
func IsDigest(s string) bool {
	if len(s) != DigestSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && strings.ToLower(s) == s
}

// FileHasher reads and hashes on every call.
type FileHasher struct{}

func (FileHasher) DigestFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return Digest(data), nil
}
