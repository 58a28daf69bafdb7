package mask

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestGenerateKeysZeroSeed(t *testing.T) {
	t.Parallel()

	video, audio := GenerateKeys(0)
	require.Len(t, video, VideoKeySize)
	require.Len(t, audio, AudioKeySize)

	require.Equal(t, []byte{0x00, 0x00, 0x00, 0xCC, 0xF9, 0x13, 0x61, 0xFF}, video[:8])
	for i := 0; i < 0x20; i++ {
		require.Equal(t, video[i]^0xFF, video[0x20+i])
	}
	require.Equal(t, byte(0xFF), audio[0])
	require.Equal(t, []byte("URUC"), []byte{audio[1], audio[3], audio[5], audio[7]})
}

func TestGenerateKeysSeedBytes(t *testing.T) {
	t.Parallel()

	video, _ := GenerateKeys(0x0706050403020100)
	require.Equal(t, byte(0x00), video[0])
	require.Equal(t, byte(0x01), video[1])
	require.Equal(t, byte(0x02), video[2])
	require.Equal(t, byte(0x03-0x34+0x100), video[3])
	require.Equal(t, byte(0x04+0xF9), video[4])
	require.Equal(t, byte(0x05^0x13), video[5])
	require.Equal(t, byte(0x06+0x61), video[6])
}

func TestVideoRoundTrip(t *testing.T) {
	t.Parallel()

	key, _ := GenerateKeys(123456789)
	tests := []struct {
		name string
		size int
	}{
		{name: "too_small", size: videoSkip + videoMinSize - 1},
		{name: "minimum", size: videoSkip + videoMinSize},
		{name: "large", size: 0x1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plain := pattern(tt.size)
			enc := EncryptVideo(plain, key)
			require.Equal(t, pattern(tt.size), plain, "input must not change")
			require.Equal(t, plain[:videoSkip], enc[:videoSkip])
			if tt.size < videoSkip+videoMinSize {
				require.Equal(t, plain, enc)
			} else {
				require.NotEqual(t, plain, enc)
			}
			require.Equal(t, plain, DecryptVideo(enc, key))
		})
	}
}

func TestKnownAnswers(t *testing.T) {
	t.Parallel()

	video, audio := GenerateKeys(0x1234567890ABCDEF)
	require.Equal(t, "efcdab5c7145951078bd5432ef1ce3225646dd4c3f32662a42d515cc6ecddf81"+
		"103254a38eba6aef8742abcd10e31cdda9b922b3c0cd99d5bd2aea339132207e", hex.EncodeToString(video))
	require.Equal(t, "105554528e556a438755ab5210551c43a9552252c0559943bd55ea5291552043", hex.EncodeToString(audio))

	plain := make([]byte, videoSkip+videoMinSize+0x20)
	for i := range plain {
		plain[i] = byte(i)
	}
	enc := EncryptVideo(plain, video)

	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{name: "chained_head", offset: 0x40, want: "efcdab5c7145951078bd5432ef1ce3225646dd4c3f32662a42d515cc6ecddf81"},
		{name: "rolling_start", offset: 0x140, want: "507316e0caff2ca8cf0be1865cae5292f9e870e09498cf82e573b068cd6f7e21"},
		{name: "tail", offset: 0x240, want: "705234c3eeda0a8fe722cbad70837cbdc9d942d3a0adf9b5dd4a8a53f152401e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, hex.EncodeToString(enc[tt.offset:tt.offset+maskPeriod]))
		})
	}
	require.Equal(t, plain, DecryptVideo(enc, video))
}

func TestAudioInvolution(t *testing.T) {
	t.Parallel()

	_, key := GenerateKeys(42)
	plain := pattern(0x400)
	enc := Audio(plain, key)

	require.Equal(t, plain[:audioSkip], enc[:audioSkip])
	require.NotEqual(t, plain[audioSkip:], enc[audioSkip:])
	require.Equal(t, plain, Audio(enc, key))
}

func TestMissingKey(t *testing.T) {
	t.Parallel()

	plain := pattern(0x400)
	require.Equal(t, plain, EncryptVideo(plain, nil))
	require.Equal(t, plain, DecryptVideo(plain, nil))
	require.Equal(t, plain, Audio(plain, nil))
}
