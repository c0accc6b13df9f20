package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// AEAD Tests
// ============================================================================

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		plaintexts := [][]byte{
			[]byte("hello"),
			{},
			bytes.Repeat([]byte{0xAB}, 768000),
		}

		for _, plaintext := range plaintexts {
			sealed, err := Encrypt(plaintext, key)
			require.NoError(t, err)
			assert.Equal(t, SealedLen(len(plaintext)), len(sealed))

			got, err := Decrypt(sealed, key)
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)
		}
	})

	t.Run("NoncesAreUnique", func(t *testing.T) {
		a, err := Encrypt([]byte("same plaintext"), key)
		require.NoError(t, err)
		b, err := Encrypt([]byte("same plaintext"), key)
		require.NoError(t, err)

		assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
		assert.NotEqual(t, a, b)
	})

	t.Run("TamperedCiphertextFailsIntegrity", func(t *testing.T) {
		sealed, err := Encrypt([]byte("payload"), key)
		require.NoError(t, err)

		for _, idx := range []int{0, NonceSize, len(sealed) - 1} {
			tampered := bytes.Clone(sealed)
			tampered[idx] ^= 0x01

			_, err := Decrypt(tampered, key)
			assert.ErrorIs(t, err, ErrIntegrity, "flipping byte %d must fail", idx)
		}
	})

	t.Run("WrongKeyFailsIntegrity", func(t *testing.T) {
		sealed, err := Encrypt([]byte("payload"), key)
		require.NoError(t, err)

		other, err := GenerateKey()
		require.NoError(t, err)

		_, err = Decrypt(sealed, other)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("ShortCiphertextRejected", func(t *testing.T) {
		_, err := Decrypt(make([]byte, NonceSize+TagSize-1), key)
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("BadKeySizeRejected", func(t *testing.T) {
		_, err := Encrypt([]byte("x"), make([]byte, 16))
		assert.ErrorIs(t, err, ErrInvalidKeySize)

		_, err = Decrypt(make([]byte, 64), make([]byte, 31))
		assert.ErrorIs(t, err, ErrInvalidKeySize)
	})
}

func TestPlaintextLen(t *testing.T) {
	assert.Equal(t, 5, PlaintextLen(SealedLen(5)))
	assert.Equal(t, 0, PlaintextLen(NonceSize+TagSize))
	assert.Equal(t, -1, PlaintextLen(NonceSize))
}

// ============================================================================
// Signature Tests
// ============================================================================

func TestSignVerify(t *testing.T) {
	pub, priv, err := GenerateSigningKeypair()
	require.NoError(t, err)

	message := []byte("challenge||MRFE3BX25XTF5CH6FPP2PXDL")
	sig := Sign(message, priv)

	t.Run("ValidSignatureVerifies", func(t *testing.T) {
		assert.True(t, Verify(message, sig, pub))
	})

	t.Run("ModifiedMessageFails", func(t *testing.T) {
		assert.False(t, Verify([]byte("challenge||other"), sig, pub))
	})

	t.Run("ModifiedSignatureFails", func(t *testing.T) {
		bad := bytes.Clone(sig)
		bad[0] ^= 0x01
		assert.False(t, Verify(message, bad, pub))
	})

	t.Run("WrongPublicKeyFails", func(t *testing.T) {
		otherPub, _, err := GenerateSigningKeypair()
		require.NoError(t, err)
		assert.False(t, Verify(message, sig, otherPub))
	})

	t.Run("MalformedPublicKeyFailsClosed", func(t *testing.T) {
		assert.False(t, Verify(message, sig, []byte{0x01, 0x02}))
	})
}

// ============================================================================
// KDF Tests
// ============================================================================

func TestDeriveScrypt(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	t.Run("Deterministic", func(t *testing.T) {
		a, err := DeriveScrypt([]byte("correct horse"), salt, DefaultScryptParams())
		require.NoError(t, err)
		b, err := DeriveScrypt([]byte("correct horse"), salt, DefaultScryptParams())
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, KeySize)
	})

	t.Run("PasswordSensitive", func(t *testing.T) {
		a, err := DeriveScrypt([]byte("correct horse"), salt, DefaultScryptParams())
		require.NoError(t, err)
		b, err := DeriveScrypt([]byte("correct house"), salt, DefaultScryptParams())
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("SaltSensitive", func(t *testing.T) {
		otherSalt, err := GenerateSalt()
		require.NoError(t, err)

		a, err := DeriveScrypt([]byte("pw"), salt, DefaultScryptParams())
		require.NoError(t, err)
		b, err := DeriveScrypt([]byte("pw"), otherSalt, DefaultScryptParams())
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("ZeroParamsFallBackToDefaults", func(t *testing.T) {
		a, err := DeriveScrypt([]byte("pw"), salt, ScryptParams{})
		require.NoError(t, err)
		b, err := DeriveScrypt([]byte("pw"), salt, DefaultScryptParams())
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})
}

func TestDerivePBKDF2(t *testing.T) {
	salt := []byte("fixed-salt-16byt")

	a := DerivePBKDF2([]byte("secret"), salt, DefaultPBKDF2Iterations)
	b := DerivePBKDF2([]byte("secret"), salt, DefaultPBKDF2Iterations)
	c := DerivePBKDF2([]byte("secret"), salt, 1000)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, KeySize)

	// Non-positive iteration count falls back to the default
	assert.Equal(t, a, DerivePBKDF2([]byte("secret"), salt, 0))
}

// ============================================================================
// Hash Tests
// ============================================================================

func TestSHA256(t *testing.T) {
	// Known vector for "hello"
	const helloHex = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	assert.Equal(t, helloHex, SHA256Hex([]byte("hello")))
	assert.Len(t, SHA256([]byte("hello")), 32)
}

func TestSHA256Reader(t *testing.T) {
	payload := strings.Repeat("segment data ", 100_000)

	digest, n, err := SHA256Reader(strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, SHA256([]byte(payload)), digest)
}

func TestHMACSHA256(t *testing.T) {
	key := []byte("mac key")

	a := HMACSHA256(key, []byte("message"))
	b := HMACSHA256(key, []byte("message"))
	c := HMACSHA256([]byte("other key"), []byte("message"))

	assert.True(t, HMACEqual(a, b))
	assert.False(t, HMACEqual(a, c))
	assert.Len(t, a, 32)
}

// ============================================================================
// Randomness Tests
// ============================================================================

func TestRandomHelpers(t *testing.T) {
	t.Run("RandomBytesLength", func(t *testing.T) {
		buf, err := RandomBytes(15)
		require.NoError(t, err)
		assert.Len(t, buf, 15)
	})

	t.Run("RandomHexShape", func(t *testing.T) {
		id, err := RandomHex(32)
		require.NoError(t, err)
		assert.Len(t, id, 64)
		assert.Equal(t, strings.ToLower(id), id)
	})

	t.Run("KeysDoNotRepeat", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 64; i++ {
			key, err := GenerateKey()
			require.NoError(t, err)
			assert.False(t, seen[string(key)])
			seen[string(key)] = true
		}
	})
}
