package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("the-api-secret", "hunter2")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	if strings.Contains(string(blob), "the-api-secret") {
		t.Fatal("ciphertext blob contains the plaintext secret")
	}

	got, err := DecryptSecret(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if got != "the-api-secret" {
		t.Fatalf("round trip got %q", got)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("secret", "right")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	if _, err := DecryptSecret(blob, "wrong"); err == nil {
		t.Fatal("want error with wrong password")
	}
}

func TestEncryptRejectsEmptyInputs(t *testing.T) {
	if _, err := EncryptSecret("", "pw"); err == nil {
		t.Fatal("want error for empty secret")
	}
	if _, err := EncryptSecret("secret", ""); err == nil {
		t.Fatal("want error for empty password")
	}
}

func TestLoadSecretPrecedence(t *testing.T) {
	t.Run("raw secret wins", func(t *testing.T) {
		got, err := LoadSecret(SecretConfig{RawSecret: "raw", EncryptedSecretPath: "/nonexistent"})
		if err != nil {
			t.Fatalf("LoadSecret: %v", err)
		}
		if got != "raw" {
			t.Fatalf("got %q want raw", got)
		}
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptSecret("from-file", "pw")
		if err != nil {
			t.Fatalf("EncryptSecret: %v", err)
		}
		path := filepath.Join(t.TempDir(), "secret.json")
		if err := os.WriteFile(path, blob, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		got, err := LoadSecret(SecretConfig{EncryptedSecretPath: path, SecretPassword: "pw"})
		if err != nil {
			t.Fatalf("LoadSecret: %v", err)
		}
		if got != "from-file" {
			t.Fatalf("got %q want from-file", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		if _, err := LoadSecret(SecretConfig{}); err == nil {
			t.Fatal("want error when no source configured")
		}
	})
}
