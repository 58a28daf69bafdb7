package usm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/format/ivf"
)

var (
	ivfKeyFrame   = append([]byte{0x82, 0x49, 0x83, 0x42, 0x20, 0x13, 0xF0, 0x0E, 0xF0}, make([]byte, 0x300)...)
	ivfInterFrame = append([]byte{0x86}, make([]byte, 0x120)...)
)

func writeIVF(t *testing.T) (string, []byte) {
	t.Helper()
	data := buildIVF(ivfKeyFrame, ivfInterFrame, ivfKeyFrame, ivfInterFrame)
	path := filepath.Join(t.TempDir(), "clip.ivf")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path, data
}

func TestNewVideoFromIVF(t *testing.T) {
	t.Parallel()

	path, data := writeIVF(t)
	v, err := NewVideoFromIVF(path, 0, false)
	require.NoError(t, err)

	require.Equal(t, 4, v.Len())
	require.Equal(t, "clip.ivf", v.Filename())
	require.False(t, v.IsAlpha())

	stmid, err := v.CridPage().Int("stmid")
	require.NoError(t, err)
	require.Equal(t, int64(gousm.StreamVideo), stmid)
	bitrate, err := v.CridPage().Int("avbps")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)*8*30/4), bitrate)

	for name, want := range map[string]int64{"width": 320, "height": 240, "total_frames": 4, "mpeg_codec": 9, "framerate_n": 30} {
		got, err := v.HeaderPage().Int(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	src, err := v.Packets(gousm.OpNone, nil)
	require.NoError(t, err)
	packets, keyframes := readAll(t, src)
	require.Equal(t, []int{0, 2}, keyframes)
	require.Len(t, packets[0], ivf.HeaderSize+ivf.FrameHeaderSize+len(ivfKeyFrame))
	require.Equal(t, data, concat(packets))
}

func TestCreateAndExtractIVF(t *testing.T) {
	t.Parallel()

	path, data := writeIVF(t)
	v, err := NewVideoFromIVF(path, 0, false)
	require.NoError(t, err)

	u, err := New(videoList(v), nil, nil, WithKey(42))
	require.NoError(t, err)
	require.Equal(t, "clip.usm", u.Filename())

	out := filepath.Join(t.TempDir(), "clip.usm")
	require.NoError(t, u.Save(out, gousm.OpEncrypt))

	opened, err := Open(out, WithKey(42))
	require.NoError(t, err)
	defer opened.Close()

	header := opened.Videos()[0].HeaderPage()
	require.Equal(t, HeaderInfoName, header.Name)
	codec, err := header.Int("mpeg_codec")
	require.NoError(t, err)
	require.Equal(t, int64(9), codec)

	res, err := opened.Demux(t.TempDir())
	require.NoError(t, err)
	got, err := os.ReadFile(res.Videos[0])
	require.NoError(t, err)
	require.Equal(t, data, got)
}
