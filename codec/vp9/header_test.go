package vp9

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/stretchr/testify/require"
)

type field struct {
	value uint64
	bits  uint8
}

func frame(t *testing.T, fields ...field) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	bw := bitio.NewWriter(buf)
	for _, f := range fields {
		require.NoError(t, bw.WriteBits(f.value, f.bits))
	}
	require.NoError(t, bw.Close())
	return append(buf.Bytes(), make([]byte, 8)...)
}

func TestKeyFrameProfile0(t *testing.T) {
	t.Parallel()

	data := frame(t,
		field{2, 2},         // frame_marker
		field{0, 1},         // profile_low_bit
		field{0, 1},         // profile_high_bit
		field{0, 1},         // show_existing_frame
		field{0, 1},         // frame_type = KEY_FRAME
		field{1, 1},         // show_frame
		field{0, 1},         // error_resilient_mode
		field{syncCode, 24}, // sync code
		field{1, 3},         // color_space BT.601
		field{0, 1},         // color_range
		field{1279, 16},     // width - 1
		field{719, 16},      // height - 1
	)

	h, err := ParseFrameHeader(data)
	require.NoError(t, err)
	require.True(t, h.KeyFrame)
	require.True(t, h.ShowFrame)
	require.Equal(t, uint8(0), h.Profile)
	require.Equal(t, uint(1280), h.Width)
	require.Equal(t, uint(720), h.Height)
}

func TestInterFrame(t *testing.T) {
	t.Parallel()

	data := frame(t,
		field{2, 2},
		field{0, 2},
		field{0, 1},
		field{1, 1}, // frame_type = NON_KEY_FRAME
		field{1, 1},
		field{0, 1},
	)

	h, err := ParseFrameHeader(data)
	require.NoError(t, err)
	require.False(t, h.KeyFrame)
	require.Zero(t, h.Width)
}

func TestShowExistingFrame(t *testing.T) {
	t.Parallel()

	data := frame(t, field{2, 2}, field{0, 2}, field{1, 1}, field{3, 3})

	h, err := ParseFrameHeader(data)
	require.NoError(t, err)
	require.True(t, h.ShowExisting)
	require.False(t, h.KeyFrame)
}

func TestInvalidHeaders(t *testing.T) {
	t.Parallel()

	_, err := ParseFrameHeader(frame(t, field{1, 2}))
	require.ErrorIs(t, err, ErrInvalidFrameMarker)

	bad := frame(t,
		field{2, 2}, field{0, 2}, field{0, 1}, field{0, 1}, field{1, 1}, field{0, 1},
		field{0x123456, 24},
	)
	_, err = ParseFrameHeader(bad)
	require.ErrorIs(t, err, ErrInvalidSyncCode)

	_, err = ParseFrameHeader(nil)
	require.Error(t, err)
}
