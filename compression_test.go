package ewf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkProcessorStoresRawAtCompressionNone(t *testing.T) {
	p := NewChunkProcessor(CompressionNone, false, FormatE01)
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	result, payload, err := p.Process(4096, raw, nil)
	assert.NoError(t, err)
	assert.False(t, result.Compressed)
	assert.Equal(t, raw, payload[:len(raw)])
	assert.Len(t, payload, len(raw)+4)
}

func TestChunkProcessorCompressesHighlyCompressibleData(t *testing.T) {
	p := NewChunkProcessor(CompressionBest, false, FormatE01)
	raw := bytes.Repeat([]byte{0xaa}, 4096)

	result, payload, err := p.Process(4096, raw, nil)
	assert.NoError(t, err)
	assert.True(t, result.Compressed)
	assert.Less(t, len(payload), len(raw))
}

func TestChunkProcessorS01AlwaysCompresses(t *testing.T) {
	p := NewChunkProcessor(CompressionNone, false, FormatS01)
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	result, _, err := p.Process(4096, raw, nil)
	assert.NoError(t, err)
	assert.True(t, result.Compressed)
}

func TestChunkProcessorCompressEmptyBlockOverridesNone(t *testing.T) {
	p := NewChunkProcessor(CompressionNone, true, FormatE01)
	raw := make([]byte, 4096)

	result, _, err := p.Process(4096, raw, nil)
	assert.NoError(t, err)
	assert.True(t, result.Compressed)
}

func TestChunkProcessorRejectsOversizedChunk(t *testing.T) {
	p := NewChunkProcessor(CompressionDefault, false, FormatE01)
	_, _, err := p.Process(4, []byte{1, 2, 3, 4, 5}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestChunkProcessorCallerOwnedRawBuffer(t *testing.T) {
	p := NewChunkProcessor(CompressionNone, false, FormatE01)
	raw := []byte{9, 8, 7}
	dst := make([]byte, 3)

	result, payload, err := p.Process(4096, raw, dst)
	assert.NoError(t, err)
	assert.True(t, result.WriteCRC)
	assert.Equal(t, raw, payload)
}
