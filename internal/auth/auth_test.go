package auth

import (
	"strings"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	signer, err := NewCookieSigner([]byte("secret"))
	if err != nil {
		t.Fatalf("NewCookieSigner: %v", err)
	}

	value := signer.Sign("abc123")
	if !strings.HasPrefix(value, "abc123.") {
		t.Fatalf("signed value = %q", value)
	}
	id, err := signer.Verify(value)
	if err != nil || id != "abc123" {
		t.Fatalf("Verify = %q, %v", id, err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer, _ := NewCookieSigner([]byte("secret"))
	other, _ := NewCookieSigner([]byte("other"))
	valid := signer.Sign("abc123")

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"unsigned", "abc123"},
		{"trailing dot", "abc123."},
		{"swapped id", "xyz789" + valid[len("abc123"):]},
		{"bad encoding", "abc123.***"},
		{"other key", other.Sign("abc123")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := signer.Verify(tt.value); err == nil {
				t.Errorf("Verify(%q) should fail", tt.value)
			}
		})
	}
}

func TestRandomSecret(t *testing.T) {
	a, err := NewCookieSigner(nil)
	if err != nil {
		t.Fatalf("NewCookieSigner: %v", err)
	}
	b, _ := NewCookieSigner(nil)
	if _, err := b.Verify(a.Sign("id")); err == nil {
		t.Error("signers with random secrets should not accept each other's cookies")
	}
}
