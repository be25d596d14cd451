package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress(t *testing.T) {
	data := bytes.Repeat([]byte(`{"node":"fetch","success":true}`), 64)

	for _, typ := range []Type{None, Gzip, Zstd, Brotli} {
		t.Run(typ.String(), func(t *testing.T) {
			packed, err := Compress(data, typ)
			require.NoError(t, err)
			if typ != None {
				assert.Less(t, len(packed), len(data))
			}

			unpacked, err := Decompress(packed, typ)
			require.NoError(t, err)
			assert.Equal(t, data, unpacked)
		})
	}
}

func TestCompressNoneCopies(t *testing.T) {
	data := []byte("abc")
	packed, err := Compress(data, None)
	require.NoError(t, err)
	packed[0] = 'z'
	require.Equal(t, "abc", string(data))
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		name     string
		expected Type
	}{
		{name: "", expected: None},
		{name: "identity", expected: None},
		{name: " GZIP ", expected: Gzip},
		{name: "x-gzip", expected: Gzip},
		{name: "zstd", expected: Zstd},
		{name: "br", expected: Brotli},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.expected, got, tt.name)
	}

	_, err := ParseEncoding("compress")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeContent(t *testing.T) {
	data := []byte("Hello, Content-Encoding!")

	gz, err := Compress(data, Gzip)
	require.NoError(t, err)
	got, err := DecodeContent(gz, "gzip")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// gzip applied first, then br.
	stacked, err := Compress(gz, Brotli)
	require.NoError(t, err)
	got, err = DecodeContent(stacked, "gzip, br")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = DecodeContent(data, "compress")
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = DecodeContent([]byte("not gzip"), "gzip")
	require.ErrorContains(t, err, "decode gzip")
}

func TestUnsupportedType(t *testing.T) {
	_, err := Compress([]byte("x"), 42)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = Decompress([]byte("x"), 42)
	require.ErrorIs(t, err, ErrUnsupported)
}
