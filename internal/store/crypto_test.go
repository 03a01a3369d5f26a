package store

import (
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var aliceGmail = tokenAAD("alice", "gmail")

func TestEncryptRoundTrip(t *testing.T) {
	t.Setenv(EncryptKeyEnv, testKey)

	ct, err := encrypt("xoxb-secret", aliceGmail)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(string(ct), "xoxb-secret") {
		t.Fatal("ciphertext contains plaintext")
	}
	pt, err := decrypt(ct, aliceGmail)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "xoxb-secret" {
		t.Errorf("got %q", pt)
	}
}

func TestEncryptEmpty(t *testing.T) {
	ct, err := encrypt("", aliceGmail)
	if err != nil || ct != nil {
		t.Errorf("empty plaintext: got %v, %v", ct, err)
	}
	pt, err := decrypt(nil, aliceGmail)
	if err != nil || pt != "" {
		t.Errorf("empty ciphertext: got %q, %v", pt, err)
	}
}

func TestEncryptKeyValidation(t *testing.T) {
	t.Setenv(EncryptKeyEnv, "")
	if _, err := encrypt("x", aliceGmail); err == nil {
		t.Error("expected error without key")
	}
	t.Setenv(EncryptKeyEnv, "abcd")
	if _, err := encrypt("x", aliceGmail); err == nil {
		t.Error("expected error for short key")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	t.Setenv(EncryptKeyEnv, testKey)
	ct, err := encrypt("token", aliceGmail)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(EncryptKeyEnv, strings.Repeat("ff", 32))
	if _, err := decrypt(ct, aliceGmail); err == nil {
		t.Error("expected error decrypting with a different key")
	}
}

func TestDecryptRejectsTokenFromAnotherRow(t *testing.T) {
	t.Setenv(EncryptKeyEnv, testKey)
	ct, err := encrypt("token", aliceGmail)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decrypt(ct, tokenAAD("mallory", "gmail")); err == nil {
		t.Error("expected error opening a token sealed for another user")
	}
	if _, err := decrypt(ct, tokenAAD("alice", "outlook")); err == nil {
		t.Error("expected error opening a token sealed for another provider")
	}
}
