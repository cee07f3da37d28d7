package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecStringFixedAudioCodecs(t *testing.T) {
	s := NewStringer()

	out, err := s.CodecString("ac3", nil)
	require.NoError(t, err)
	assert.Equal(t, "ac-3", out)

	out, err = s.CodecString("eac3", nil)
	require.NoError(t, err)
	assert.Equal(t, "ec-3", out)
}

func TestCodecStringAACObjectType(t *testing.T) {
	s := NewStringer()
	// AudioSpecificConfig with objectType=2 (AAC-LC) in the top 5 bits.
	asc := []byte{0x12, 0x10}
	out, err := s.CodecString("aac", asc)
	require.NoError(t, err)
	assert.Equal(t, "mp4a.40.2", out)
}

func TestCodecStringUnknownCodecErrors(t *testing.T) {
	s := NewStringer()
	_, err := s.CodecString("not-a-codec", nil)
	assert.Error(t, err)
}

func TestCodecStringFallsBackForUnparsedVideoCodecs(t *testing.T) {
	s := NewStringer()
	out, err := s.CodecString("vp9", nil)
	require.NoError(t, err)
	assert.Equal(t, "vp9", out)
}

func TestReverseBits32(t *testing.T) {
	assert.Equal(t, uint32(0x80000000), reverseBits32(1))
	assert.Equal(t, uint32(1), reverseBits32(0x80000000))
}
