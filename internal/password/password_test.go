package password

import (
	"bytes"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a := Hash("secret-password", salt)
	b := Hash("secret-password", salt)
	c := Hash("other-password", salt)

	if !bytes.Equal(a, b) {
		t.Fatalf("Hash must be deterministic, got %x and %x", a, b)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("different passwords must produce different hashes")
	}
	if len(a) != KeySize {
		t.Fatalf("hash length = %d, want %d", len(a), KeySize)
	}
}

func TestHashDependsOnSalt(t *testing.T) {
	a := Hash("secret-password", []byte("0123456789abcdef"))
	b := Hash("secret-password", []byte("fedcba9876543210"))

	if bytes.Equal(a, b) {
		t.Fatalf("different salts must produce different hashes")
	}
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}
	b, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}

	if len(a) != SaltSize {
		t.Fatalf("salt length = %d, want %d", len(a), SaltSize)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two salts must not be equal")
	}
}

func TestEqual(t *testing.T) {
	salt := []byte("0123456789abcdef")
	h := Hash("secret-password", salt)

	if !Equal(h, Hash("secret-password", salt)) {
		t.Fatalf("Equal must accept matching hashes")
	}
	if Equal(h, Hash("wrong-password", salt)) {
		t.Fatalf("Equal must reject different hashes")
	}
}

func TestIsLegacySalt(t *testing.T) {
	tests := []struct {
		name string
		salt []byte
		want bool
	}{
		{"nil", nil, true},
		{"empty", []byte{}, true},
		{"sixteen zero bytes", make([]byte, SaltSize), true},
		{"real salt", []byte("0123456789abcdef"), false},
		{"short nonzero", []byte{1, 2, 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLegacySalt(tt.salt); got != tt.want {
				t.Fatalf("IsLegacySalt(%v) = %v, want %v", tt.salt, got, tt.want)
			}
		})
	}
}
