package usm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/page"
)

type memSource struct {
	packets   [][]byte
	keyframes map[int]bool
	index     int
	calls     *int
}

func (s *memSource) Next() ([]byte, bool, error) {
	if s.calls != nil {
		*s.calls++
	}
	if s.index >= len(s.packets) {
		return nil, false, io.EOF
	}
	i := s.index
	s.index++
	return bytes.Clone(s.packets[i]), s.keyframes[i], nil
}

func (s *memSource) Close() error { return nil }

func memOpener(packets [][]byte, calls *int, keyframes ...int) gousm.PacketOpener {
	kf := make(map[int]bool, len(keyframes))
	for _, k := range keyframes {
		kf[k] = true
	}
	return func() (gousm.PacketSource, error) {
		return &memSource{packets: packets, keyframes: kf, calls: calls}, nil
	}
}

func testPacket(channel, index, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(channel*31 + index*7 + i)
	}
	return b
}

func testPackets(channel, frames, size int) [][]byte {
	packets := make([][]byte, frames)
	for i := range packets {
		packets[i] = testPacket(channel, i, size+i)
	}
	return packets
}

func concat(packets [][]byte) []byte {
	return bytes.Join(packets, nil)
}

func testVideoCrid(channel int, filename string, stream gousm.StreamType) *page.Page {
	return Crid{
		Version:  DefaultVersion,
		Filename: filename,
		Filesize: 0x10000,
		Stream:   stream,
		Channel:  channel,
		MinChunk: videoMinChunk,
		Minbuf:   0x2000,
		Bitrate:  int64(100000 * (channel + 1)),
	}.Page()
}

func testVideo(channel int, packets [][]byte, keyframes ...int) *Video {
	d := Descriptor{
		Channel: channel,
		Crid:    testVideoCrid(channel, fmt.Sprintf("video%d.ivf", channel), gousm.StreamVideo),
		Header: page.New(HeaderInfoName).
			SetInt("width", page.Int32, 640).
			SetInt("height", page.Int32, 360).
			SetInt("total_frames", page.Int32, int64(len(packets))).
			SetInt("framerate_n", page.Int32, 30000).
			SetInt("framerate_d", page.Int32, 1001),
		Frames: len(packets),
	}
	return NewVideo(memOpener(packets, nil, keyframes...), d, false)
}

func testAlpha(channel int, packets [][]byte) *Video {
	v := testVideo(channel, packets)
	v.Crid = testVideoCrid(channel, fmt.Sprintf("alpha%d.ivf", channel), gousm.StreamAlpha)
	v.alpha = true
	return v
}

func testAudio(channel int, packets [][]byte, calls *int) *Audio {
	d := Descriptor{
		Channel: channel,
		Crid: Crid{
			Version:  DefaultVersion,
			Filename: fmt.Sprintf("audio%d.hca", channel),
			Filesize: 0x8000,
			Stream:   gousm.StreamAudio,
			Channel:  channel,
			MinChunk: 1,
			Minbuf:   0x400,
			Bitrate:  int64(48000 * (channel + 1)),
		}.Page(),
		Header: page.New("AUDIO_HDRINFO").
			SetInt("audio_codec", page.Uint8, 4).
			SetInt("sampling_rate", page.Int32, 48000).
			SetInt("num_channels", page.Uint8, 2),
		Frames: len(packets),
	}
	return NewAudio(memOpener(packets, calls), d)
}

type located struct {
	offset int64
	c      *chunk.Chunk
}

// scan splits container bytes into chunks.
func scan(t *testing.T, data []byte) []located {
	t.Helper()
	var out []located
	for pos := 0; pos < len(data); {
		size, pad, err := chunk.SizeAndPadding(data[pos:])
		require.NoError(t, err)
		c, err := chunk.Parse(data[pos:pos+size], "")
		require.NoError(t, err)
		out = append(out, located{offset: int64(pos), c: c})
		pos += size + pad
	}
	return out
}

func streamChunks(chunks []located, typ chunk.Type, channel int) []located {
	var out []located
	for _, l := range chunks {
		if l.c.Type == typ && l.c.Channel == channel && l.c.PayloadType == chunk.Stream {
			out = append(out, l)
		}
	}
	return out
}

func videoList(vs ...*Video) []gousm.VideoElement {
	out := make([]gousm.VideoElement, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func audioList(as ...*Audio) []gousm.AudioElement {
	out := make([]gousm.AudioElement, len(as))
	for i, a := range as {
		out[i] = a
	}
	return out
}

func readAll(t *testing.T, src gousm.PacketSource) (packets [][]byte, keyframes []int) {
	t.Helper()
	defer src.Close()
	for i := 0; ; i++ {
		data, key, err := src.Next()
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
		packets = append(packets, data)
		if key {
			keyframes = append(keyframes, i)
		}
	}
}

func buildIVF(frames ...[]byte) []byte {
	buf := new(bytes.Buffer)
	hdr := make([]byte, 32)
	copy(hdr, "DKIF")
	binary.LittleEndian.PutUint16(hdr[6:], 32)
	copy(hdr[8:], "VP90")
	binary.LittleEndian.PutUint16(hdr[12:], 320)
	binary.LittleEndian.PutUint16(hdr[14:], 240)
	binary.LittleEndian.PutUint32(hdr[16:], 30)
	binary.LittleEndian.PutUint32(hdr[20:], 1)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(frames)))
	buf.Write(hdr)
	for i, f := range frames {
		var fh [12]byte
		binary.LittleEndian.PutUint32(fh[:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		buf.Write(fh[:])
		buf.Write(f)
	}
	return buf.Bytes()
}
