// Package crypto loads the trading wallet's ed25519 keypair, either from a
// plain secret or from a password-encrypted key file.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// encryptedKeyJSON is the on-disk format written by EncryptKey.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	PublicKey  string `json:"public_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// ErrNoKey means neither a secret nor an encrypted file was configured.
var ErrNoKey = errors.New("crypto: no wallet secret configured")

// KeyConfig says where LoadKey finds the wallet secret.
type KeyConfig struct {
	// SecretKey is base58, hex or a JSON byte array. Takes precedence.
	SecretKey string

	EncryptedKeyPath string
	KeyPassword      string

	// PublicKey, when set, must match the loaded keypair.
	PublicKey string
}

// EncryptKey seals key with a password-derived AES-256-GCM key and returns the
// JSON blob to write to disk.
func EncryptKey(key ed25519.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: expected %d-byte key, got %d", ed25519.PrivateKeySize, len(key))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := encryptedKeyJSON{
		Version:    currentVersion,
		PublicKey:  EncodePublicKey(key.Public().(ed25519.PublicKey)),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, key, nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey opens a blob produced by EncryptKey.
func DecryptKey(encryptedJSON []byte, password string) (ed25519.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: bad nonce length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return toPrivateKey(plaintext)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves the wallet keypair. SecretKey wins over the encrypted file.
func LoadKey(cfg KeyConfig) (ed25519.PrivateKey, error) {
	var (
		key ed25519.PrivateKey
		err error
	)
	switch {
	case cfg.SecretKey != "":
		key, err = ParseSecret(cfg.SecretKey)
	case cfg.EncryptedKeyPath != "":
		var data []byte
		data, err = os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		key, err = DecryptKey(data, cfg.KeyPassword)
	default:
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, err
	}

	if cfg.PublicKey != "" {
		if got := EncodePublicKey(key.Public().(ed25519.PublicKey)); got != cfg.PublicKey {
			return nil, fmt.Errorf("crypto: secret belongs to %s, configured public key is %s", got, cfg.PublicKey)
		}
	}
	return key, nil
}

// SealSecretFile parses secret, encrypts it with password and writes the
// result to path with owner-only permissions. It refuses to overwrite an
// existing file and returns the wallet address.
func SealSecretFile(path, secret, password string) (string, error) {
	if secret == "" {
		return "", ErrNoKey
	}
	key, err := ParseSecret(secret)
	if err != nil {
		return "", err
	}
	blob, err := EncryptKey(key, password)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("crypto: create key file: %w", err)
	}
	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("crypto: write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("crypto: write key file: %w", err)
	}
	return EncodePublicKey(key.Public().(ed25519.PublicKey)), nil
}
