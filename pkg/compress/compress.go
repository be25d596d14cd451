// Package compress packs stored run payloads and decodes HTTP response bodies.
package compress

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Type identifies a codec. Its value is persisted next to packed blobs, so
// existing values must never be renumbered.
type Type int8

const (
	None   Type = 0
	Gzip   Type = 1
	Zstd   Type = 2
	Brotli Type = 3
)

var ErrUnsupported = errors.New("unsupported compression")

var encodingNames = map[string]Type{
	"":         None,
	"identity": None,
	"gzip":     Gzip,
	"x-gzip":   Gzip,
	"zstd":     Zstd,
	"br":       Brotli,
}

func (t Type) String() string {
	switch t {
	case None:
		return "identity"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Brotli:
		return "br"
	default:
		return fmt.Sprintf("Type(%d)", int8(t))
	}
}

// ParseEncoding maps a Content-Encoding token (or a config value) to a Type.
func ParseEncoding(name string) (Type, error) {
	t, ok := encodingNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return None, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	return t, nil
}

var (
	gzipWriters = sync.Pool{
		New: func() any { return gzip.NewWriter(io.Discard) },
	}
	brotliWriters = sync.Pool{
		New: func() any { return brotli.NewWriter(io.Discard) },
	}

	// EncodeAll and DecodeAll are safe for concurrent use on shared instances.
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

type resetWriter interface {
	io.WriteCloser
	Reset(io.Writer)
}

func streamThrough(pool *sync.Pool, data []byte) ([]byte, error) {
	w := pool.Get().(resetWriter)
	defer pool.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compress returns data packed with t. The result never aliases data.
func Compress(data []byte, t Type) ([]byte, error) {
	switch t {
	case None:
		return bytes.Clone(data), nil
	case Gzip:
		return streamThrough(&gzipWriters, data)
	case Zstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case Brotli:
		return streamThrough(&brotliWriters, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

func Decompress(data []byte, t Type) ([]byte, error) {
	switch t {
	case None:
		return bytes.Clone(data), nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	case Zstd:
		return zstdDecoder.DecodeAll(data, nil)
	case Brotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

// DecodeContent undoes a Content-Encoding header value. Stacked encodings
// such as "gzip, br" are listed in the order they were applied.
func DecodeContent(data []byte, contentEncoding string) ([]byte, error) {
	tokens := strings.Split(contentEncoding, ",")
	for i := len(tokens) - 1; i >= 0; i-- {
		t, err := ParseEncoding(tokens[i])
		if err != nil {
			return nil, err
		}
		if data, err = Decompress(data, t); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
	}
	return data, nil
}
