// Package snapshot implements the Snapshot Manager: creation, compression,
// verification, and restoration of aggregate snapshots with pluggable
// codecs, plus lifecycle policy and statistics. The mandatory
// {none, gzip, lz4, zstd} codec set is generalized behind a registration
// table keyed by codec tag, so additional codecs can be added at runtime
// without touching call sites.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// Compression identifies a snapshot payload codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// Codec compresses and decompresses snapshot payload bytes.
type Codec interface {
	Tag() Compression
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

type noneCodec struct{}

func (noneCodec) Tag() Compression                    { return CompressionNone }
func (noneCodec) Compress(data []byte) ([]byte, error) { return data, nil }
func (noneCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

type gzipCodec struct{ level int }

func (gzipCodec) Tag() Compression { return CompressionGzip }

func (c gzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	level := c.level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to create gzip writer")
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to write gzip payload")
	}
	if err := w.Close(); err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to close gzip writer")
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to create gzip reader")
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to read gzip payload")
	}
	return buf.Bytes(), nil
}

type lz4Codec struct{}

func (lz4Codec) Tag() Compression { return CompressionLZ4 }

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to write lz4 payload")
	}
	if err := w.Close(); err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to close lz4 writer")
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to read lz4 payload")
	}
	return buf.Bytes(), nil
}

type zstdCodec struct{}

func (zstdCodec) Tag() Compression { return CompressionZstd }

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to create zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to create zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, storeerrors.Wrap(err, storeerrors.Permanent, "failed to decode zstd payload")
	}
	return out, nil
}

// CodecRegistry resolves a Compression tag to its Codec. Additional codecs
// may be registered at runtime.
type CodecRegistry struct {
	codecs map[Compression]Codec
}

// NewCodecRegistry returns a registry pre-populated with the mandatory
// {none, gzip, lz4, zstd} set.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[Compression]Codec)}
	r.Register(noneCodec{})
	r.Register(gzipCodec{level: gzip.DefaultCompression})
	r.Register(lz4Codec{})
	r.Register(zstdCodec{})
	return r
}

// Register adds or replaces a codec under its own tag.
func (r *CodecRegistry) Register(c Codec) {
	r.codecs[c.Tag()] = c
}

// Get resolves a codec by tag.
func (r *CodecRegistry) Get(tag Compression) (Codec, error) {
	c, ok := r.codecs[tag]
	if !ok {
		return nil, storeerrors.Newf(storeerrors.Permanent, "unsupported compression codec %q", tag)
	}
	return c, nil
}
