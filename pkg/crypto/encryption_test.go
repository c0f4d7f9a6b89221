package crypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	plaintext := "ya29.a0AfH6SMC-refresh-token-value"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestEncryptEmptyString(t *testing.T) {
	enc, _ := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	ciphertext, err := enc.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext != "" {
		t.Fatalf("expected empty ciphertext for empty plaintext, got %q", ciphertext)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	enc1, _ := NewEncryptor([]byte("key-one-0123456789abcdef01234567"))
	enc2, _ := NewEncryptor([]byte("key-two-0123456789abcdef01234567"))

	ciphertext, err := enc1.Encrypt("secret app password")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption with wrong key to fail")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	enc, _ := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	ciphertext, err := enc.Encrypt("secret app password")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := enc.Decrypt(string(tampered)); err == nil {
		t.Fatal("expected decryption of tampered ciphertext to fail")
	}
}

func TestDecryptInvalidBase64(t *testing.T) {
	enc, _ := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if _, err := enc.Decrypt("not valid base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64 ciphertext")
	}
}

func TestNewEncryptorDerivesNonStandardKeyLength(t *testing.T) {
	// A key that isn't exactly 32 bytes is hashed down via SHA-256 rather
	// than rejected, so config values don't have to be precisely sized.
	enc, err := NewEncryptor([]byte("short-key"))
	if err != nil {
		t.Fatalf("NewEncryptor with short key: %v", err)
	}
	ciphertext, err := enc.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestIsEncrypted(t *testing.T) {
	enc, _ := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	ciphertext, _ := enc.Encrypt("a refresh token")

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty string", "", false},
		{"plaintext looking value", "plain-app-password", false},
		{"real ciphertext", ciphertext, true},
		{"short base64", "aGVsbG8=", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEncrypted(tt.in); got != tt.want {
				t.Errorf("IsEncrypted(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncryptTokenDecryptTokenRoundTrip(t *testing.T) {
	enc, _ := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	token := "1//0gBx-refresh-token"

	encrypted, err := enc.EncryptToken(token)
	if err != nil {
		t.Fatalf("EncryptToken: %v", err)
	}
	decrypted, err := enc.DecryptToken(encrypted)
	if err != nil {
		t.Fatalf("DecryptToken: %v", err)
	}
	if decrypted != token {
		t.Fatalf("got %q, want %q", decrypted, token)
	}
}
