package licensekit

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func TestKeypairRoundtrip(t *testing.T) {
	encrypted, public, err := generateKeypair("my secret passphrase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pub, err := base64.StdEncoding.DecodeString(public)
	if err != nil {
		t.Fatalf("public key is not valid base64: %v", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		t.Fatalf("public key length = %d, want %d", len(pub), ed25519.PublicKeySize)
	}

	priv, err := decryptPrivateKey(encrypted, "my secret passphrase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The decrypted private key must sign for the returned public key.
	msg := []byte("probe")
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, ed25519.Sign(priv, msg)) {
		t.Error("decrypted private key does not match public key")
	}
}

func TestDecryptPrivateKey_WrongPassphrase(t *testing.T) {
	encrypted, _, err := generateKeypair("correct passphrase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := decryptPrivateKey(encrypted, "wrong passphrase"); !errors.Is(err, ErrPassphraseMismatch) {
		t.Errorf("expected ErrPassphraseMismatch, got %v", err)
	}
}

func TestDecryptPrivateKey_Garbage(t *testing.T) {
	if _, err := decryptPrivateKey("not base64 at all!!", "x"); err == nil {
		t.Error("expected an error for non-base64 input")
	}

	blob := base64.StdEncoding.EncodeToString([]byte(`{"version":99}`))
	if _, err := decryptPrivateKey(blob, "x"); err == nil {
		t.Error("expected an error for an unsupported version")
	}
}

func TestEncryptPrivateKey_UniqueCiphertexts(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)

	a, err := encryptPrivateKey(priv, "pass")
	if err != nil {
		t.Fatal(err)
	}
	b, err := encryptPrivateKey(priv, "pass")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two encryptions of the same key should differ (random salt and nonce)")
	}
}
