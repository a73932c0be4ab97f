package policy

import (
	"crypto/rand"
	"fmt"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomToken returns n bytes sampled from the 62-character alphanumeric
// alphabet using a cryptographically strong source, following the same
// crypto/rand-backed key-material generation idiom the teacher uses for
// wrapped key bytes (crypto/aeskw.go) — applied here to an ASCII secret
// instead of raw key bytes.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("policy: random token length must be positive, got %d", n)
	}
	idx := make([]byte, n)
	if _, err := rand.Read(idx); err != nil {
		return "", fmt.Errorf("policy: random token: %w", err)
	}
	out := make([]byte, n)
	for i, b := range idx {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}

// RandomPath returns "/tmp/<n-char token>" using the same alphabet and
// random source as RandomToken.
func RandomPath(n int) (string, error) {
	token, err := RandomToken(n)
	if err != nil {
		return "", err
	}
	return "/tmp/" + token, nil
}
