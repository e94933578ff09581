package internal

import "testing"

func TestNewVerificationTokenShape(t *testing.T) {
	token, err := NewVerificationToken()
	if err != nil {
		t.Fatalf("NewVerificationToken failed: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64", len(token))
	}
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			t.Fatalf("token contains non-url-safe rune %q", r)
		}
	}
}

func TestNewVerificationTokenUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		token, err := NewVerificationToken()
		if err != nil {
			t.Fatalf("NewVerificationToken failed: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}
