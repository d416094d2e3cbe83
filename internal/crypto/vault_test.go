package crypto

import "testing"

func TestVaultRoundTrip(t *testing.T) {
	v, err := NewVault("test-secret-value")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	cipher, err := v.Encrypt("1//0gsecret-refresh-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if cipher == "" {
		t.Fatal("expected non-empty ciphertext")
	}
	plain, err := v.Decrypt(cipher)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "1//0gsecret-refresh-token" {
		t.Fatalf("got %q", plain)
	}
}

func TestVaultEmptyValuesPassThrough(t *testing.T) {
	v, _ := NewVault("another-secret")
	cipher, err := v.Encrypt("")
	if err != nil || cipher != "" {
		t.Fatalf("expected empty ciphertext, got %q err=%v", cipher, err)
	}
	plain, err := v.Decrypt("")
	if err != nil || plain != "" {
		t.Fatalf("expected empty plaintext, got %q err=%v", plain, err)
	}
}

func TestVaultRejectsEmptyKey(t *testing.T) {
	if _, err := NewVault(""); err != ErrEmptyKey {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestVaultDifferentKeysDontDecrypt(t *testing.T) {
	v1, _ := NewVault("key-one")
	v2, _ := NewVault("key-two")
	cipher, err := v1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := v2.Decrypt(cipher); err == nil {
		t.Fatal("expected decryption failure across different keys")
	}
}
