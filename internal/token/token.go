// Package token creates admin API bearer tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// byteLen is the amount of randomness in a token, hex encoded on output.
const byteLen = 32

// Generate returns a new random token of 2*byteLen hex characters.
func Generate() (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// WriteFile stores tok at path, readable only by the owner. It refuses to
// replace an existing file.
func WriteFile(path, tok string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	if _, err := f.WriteString(tok + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("writing token: %w", err)
	}
	return f.Close()
}
