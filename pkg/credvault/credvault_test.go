package credvault_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/credvault"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, credvault.KeySize)
}

func TestVault_InvalidKeySize(t *testing.T) {
	_, err := credvault.New([]byte("short"))
	require.ErrorIs(t, err, credvault.ErrInvalidKeySize)

	_, err = credvault.NewWithAlgorithm(testKey(), 9)
	require.ErrorIs(t, err, credvault.ErrUnsupportedAlgo)
}

func TestVault_SealOpen(t *testing.T) {
	for _, algo := range []credvault.Algorithm{
		credvault.AlgorithmXChaCha20Poly1305,
		credvault.AlgorithmAES256GCM,
		credvault.AlgorithmNone,
	} {
		v, err := credvault.NewWithAlgorithm(testKey(), algo)
		require.NoError(t, err)

		sealed, err := v.SealString("API_TOKEN", "s3cret")
		require.NoError(t, err)
		require.Equal(t, byte(algo), sealed[0])
		if algo != credvault.AlgorithmNone {
			require.NotContains(t, string(sealed), "s3cret")
		}

		plain, err := v.OpenString("API_TOKEN", sealed)
		require.NoError(t, err)
		require.Equal(t, "s3cret", plain)
	}
}

func TestVault_NonceIsRandom(t *testing.T) {
	v, err := credvault.New(testKey())
	require.NoError(t, err)
	a, err := v.SealString("k", "same")
	require.NoError(t, err)
	b, err := v.SealString("k", "same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVault_OpenRejectsTampering(t *testing.T) {
	v, err := credvault.New(testKey())
	require.NoError(t, err)
	sealed, err := v.SealString("API_TOKEN", "s3cret")
	require.NoError(t, err)

	_, err = v.Open("OTHER_NAME", sealed)
	require.ErrorIs(t, err, credvault.ErrOpenFailed)

	flipped := append([]byte(nil), sealed...)
	flipped[len(flipped)-1] ^= 0xff
	_, err = v.Open("API_TOKEN", flipped)
	require.ErrorIs(t, err, credvault.ErrOpenFailed)

	_, err = v.Open("API_TOKEN", sealed[:5])
	require.ErrorIs(t, err, credvault.ErrSealedTooShort)

	other, err := credvault.New(bytes.Repeat([]byte{0x01}, credvault.KeySize))
	require.NoError(t, err)
	_, err = other.Open("API_TOKEN", sealed)
	require.ErrorIs(t, err, credvault.ErrOpenFailed)
}

func TestVault_OpensAcrossAlgorithms(t *testing.T) {
	gcm, err := credvault.NewWithAlgorithm(testKey(), credvault.AlgorithmAES256GCM)
	require.NoError(t, err)
	sealed, err := gcm.SealString("k", "v")
	require.NoError(t, err)

	chacha, err := credvault.New(testKey())
	require.NoError(t, err)
	plain, err := chacha.OpenString("k", sealed)
	require.NoError(t, err)
	require.Equal(t, "v", plain)
}

func TestKeys(t *testing.T) {
	key, err := credvault.KeyFromHex(strings.Repeat("ab", credvault.KeySize))
	require.NoError(t, err)
	require.Len(t, key, credvault.KeySize)

	_, err = credvault.KeyFromHex("abcd")
	require.ErrorIs(t, err, credvault.ErrInvalidKeySize)
	_, err = credvault.KeyFromHex("zz")
	require.Error(t, err)

	salt := []byte("actionflow-salt!")
	a := credvault.KeyFromPassphrase("correct horse", salt)
	b := credvault.KeyFromPassphrase("correct horse", salt)
	c := credvault.KeyFromPassphrase("battery staple", salt)
	require.Len(t, a, credvault.KeySize)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
