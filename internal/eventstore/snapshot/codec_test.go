package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRegistryRoundTripsEveryMandatoryCodec(t *testing.T) {
	registry := NewCodecRegistry()
	payload := []byte(`{"aggregate_id":"abc","version":42,"note":"hello world hello world"}`)

	for _, tag := range []Compression{CompressionNone, CompressionGzip, CompressionLZ4, CompressionZstd} {
		t.Run(string(tag), func(t *testing.T) {
			codec, err := registry.Get(tag)
			require.NoError(t, err)
			assert.Equal(t, tag, codec.Tag())

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, restored)
		})
	}
}

func TestCodecRegistryUnknownTagFails(t *testing.T) {
	registry := NewCodecRegistry()
	_, err := registry.Get(Compression("brotli"))
	assert.Error(t, err)
}

func TestCodecRegistryRegisterOverridesExistingTag(t *testing.T) {
	registry := NewCodecRegistry()
	registry.Register(noneCodec{})

	codec, err := registry.Get(CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, codec.Tag())
}
