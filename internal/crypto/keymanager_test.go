package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return ed25519.NewKeyFromSeed(seed)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t)
	blob, err := EncryptKey(key, "hunter2")
	require.NoError(t, err)

	var stored encryptedKeyJSON
	require.NoError(t, json.Unmarshal(blob, &stored))
	assert.Equal(t, EncodePublicKey(key.Public().(ed25519.PublicKey)), stored.PublicKey)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = DecryptKey(blob, "wrong")
	assert.ErrorContains(t, err, "wrong password")
}

func TestEncryptKey_Rejects(t *testing.T) {
	_, err := EncryptKey(testKey(t), "")
	assert.Error(t, err)

	_, err = EncryptKey(ed25519.PrivateKey(make([]byte, 10)), "pw")
	assert.Error(t, err)
}

func TestParseSecret_Formats(t *testing.T) {
	key := testKey(t)

	arr := make([]int, len(key))
	for i, b := range key {
		arr[i] = int(b)
	}
	jsonArr, err := json.Marshal(arr)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
	}{
		{"keypair base58", base58.Encode(key)},
		{"seed base58", base58.Encode(key.Seed())},
		{"keypair hex", hex.EncodeToString(key)},
		{"seed hex with prefix", "0x" + hex.EncodeToString(key.Seed())},
		{"json array", string(jsonArr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSecret(tt.secret)
			require.NoError(t, err)
			assert.True(t, key.Equal(got))
		})
	}
}

func TestParseSecret_Invalid(t *testing.T) {
	tampered := append([]byte(nil), testKey(t)...)
	tampered[63] ^= 0xff

	for _, s := range []string{"", "[1,2,300]", "0OIl", base58.Encode([]byte{1, 2, 3}), base58.Encode(tampered)} {
		_, err := ParseSecret(s)
		assert.Error(t, err, s)
	}
}

func TestLoadKey(t *testing.T) {
	key := testKey(t)
	pub := EncodePublicKey(key.Public().(ed25519.PublicKey))

	_, err := LoadKey(KeyConfig{})
	assert.ErrorIs(t, err, ErrNoKey)

	got, err := LoadKey(KeyConfig{SecretKey: base58.Encode(key), PublicKey: pub})
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = LoadKey(KeyConfig{SecretKey: base58.Encode(key), PublicKey: "SomeoneElse111"})
	assert.ErrorContains(t, err, "configured public key")

	blob, err := EncryptKey(key, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.True(t, key.Equal(got))
}

func TestSealSecretFile(t *testing.T) {
	key := testKey(t)
	path := filepath.Join(t.TempDir(), "wallet.json")

	addr, err := SealSecretFile(path, base58.Encode(key), "pw")
	require.NoError(t, err)
	assert.Equal(t, EncodePublicKey(key.Public().(ed25519.PublicKey)), addr)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw", PublicKey: addr})
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = SealSecretFile(path, base58.Encode(key), "pw")
	assert.ErrorContains(t, err, "create key file", "existing files are kept")

	_, err = SealSecretFile(filepath.Join(t.TempDir(), "x.json"), "", "pw")
	assert.ErrorIs(t, err, ErrNoKey)
}
