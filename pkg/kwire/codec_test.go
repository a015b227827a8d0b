package kwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")

	for _, c := range []Codec{CodecNone, CodecSnappy, CodecLZ4, CodecZstd} {
		c := c
		t.Run(c.String(), func(t *testing.T) {
			compressed, err := Compress(c, nil, payload)
			require.NoError(t, err)

			decompressed, err := Decompress(c, nil, compressed)
			require.NoError(t, err)
			require.Equal(t, payload, decompressed)
		})
	}
}

func TestCodec_UnknownCodecErrors(t *testing.T) {
	_, err := Compress(Codec(99), nil, []byte("x"))
	require.Error(t, err)

	_, err = Decompress(Codec(99), nil, []byte("x"))
	require.Error(t, err)
}
