package licensekit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for deriving the private-key encryption key from the
// passphrase (OWASP recommended minimums).
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32 // AES-256
	saltLen      = 32
)

// encryptedKey is the serialized form of a passphrase-encrypted private
// key. The version field allows the format to evolve.
type encryptedKey struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// generateKeypair creates a new Ed25519 keypair and returns the
// passphrase-encrypted private key and the base64-encoded public key.
func generateKeypair(passphrase string) (encryptedPrivate, publicKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate keypair: %w", err)
	}
	encryptedPrivate, err = encryptPrivateKey(priv, passphrase)
	if err != nil {
		return "", "", err
	}
	return encryptedPrivate, base64.StdEncoding.EncodeToString(pub), nil
}

// encryptPrivateKey seals priv under the passphrase using a scrypt-derived
// AES-256-GCM key and returns a base64 blob safe to store in the keypair
// file.
func encryptPrivateKey(priv ed25519.PrivateKey, passphrase string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := deriveCipher(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	blob, err := json.Marshal(encryptedKey{
		Version:    1,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, priv, nil),
	})
	if err != nil {
		return "", fmt.Errorf("marshal encrypted key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// decryptPrivateKey reverses encryptPrivateKey. A GCM authentication
// failure is reported as ErrPassphraseMismatch: the usual cause is a
// passphrase that was changed without regenerating the keypair.
func decryptPrivateKey(encrypted, passphrase string) (ed25519.PrivateKey, error) {
	blob, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	var ek encryptedKey
	if err := json.Unmarshal(blob, &ek); err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if ek.Version != 1 {
		return nil, fmt.Errorf("unsupported private key version %d", ek.Version)
	}

	gcm, err := deriveCipher(passphrase, ek.Salt)
	if err != nil {
		return nil, err
	}
	if len(ek.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrPassphraseMismatch, len(ek.Nonce))
	}

	plain, err := gcm.Open(nil, ek.Nonce, ek.Ciphertext, nil)
	if err != nil {
		return nil, ErrPassphraseMismatch
	}
	if len(plain) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: bad key length %d", ErrPassphraseMismatch, len(plain))
	}
	return ed25519.PrivateKey(plain), nil
}

func deriveCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
