package support

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"strconv"

	"github.com/google/uuid"
)

func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// AnonymousID derives a stable identifier from machine identity. The same
// machine always produces the same ID, but the ID reveals nothing about it.
// When no hostname is available a random ID is used instead.
func AnonymousID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return uuid.NewString()[:16]
	}
	return HashString(hostname + runtime.GOARCH)
}

// HashString returns the first 16 hex characters of the SHA-256 of input.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
