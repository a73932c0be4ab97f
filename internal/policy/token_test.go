package policy

import (
	"strings"
	"testing"
)

func TestRandomTokenLength(t *testing.T) {
	tok, err := RandomToken(31)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	if len(tok) != 31 {
		t.Fatalf("len = %d, want 31", len(tok))
	}
	for _, c := range tok {
		if !strings.ContainsRune(tokenAlphabet, c) {
			t.Fatalf("token contains out-of-alphabet rune %q", c)
		}
	}
}

func TestRandomTokenVaries(t *testing.T) {
	a, err := RandomToken(31)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	b, err := RandomToken(31)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	if a == b {
		t.Fatalf("two random tokens collided: %q", a)
	}
}

func TestRandomTokenRejectsNonPositive(t *testing.T) {
	if _, err := RandomToken(0); err == nil {
		t.Fatalf("expected error for n=0")
	}
	if _, err := RandomToken(-1); err == nil {
		t.Fatalf("expected error for n=-1")
	}
}

func TestRandomPathPrefix(t *testing.T) {
	p, err := RandomPath(16)
	if err != nil {
		t.Fatalf("RandomPath: %v", err)
	}
	if !strings.HasPrefix(p, "/tmp/") {
		t.Fatalf("path %q missing /tmp/ prefix", p)
	}
	if len(p) != len("/tmp/")+16 {
		t.Fatalf("path %q has unexpected length", p)
	}
}
