package ivf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	keyFrame   = []byte{0x82, 0x49, 0x83, 0x42, 0x20, 0x27, 0xF0, 0x16, 0x70, 0x00, 0x00, 0x00}
	interFrame = []byte{0x86, 0x00, 0x00, 0x00}
)

func buildIVF(fourcc string, frames ...[]byte) []byte {
	buf := new(bytes.Buffer)
	hdr := make([]byte, HeaderSize)
	copy(hdr, "DKIF")
	binary.LittleEndian.PutUint16(hdr[6:], HeaderSize)
	copy(hdr[8:], fourcc)
	binary.LittleEndian.PutUint16(hdr[12:], 640)
	binary.LittleEndian.PutUint16(hdr[14:], 360)
	binary.LittleEndian.PutUint32(hdr[16:], 30)
	binary.LittleEndian.PutUint32(hdr[20:], 1)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(frames)))
	buf.Write(hdr)

	for i, f := range frames {
		var fh [FrameHeaderSize]byte
		binary.LittleEndian.PutUint32(fh[:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		buf.Write(fh[:])
		buf.Write(f)
	}
	return buf.Bytes()
}

func TestReadPackets(t *testing.T) {
	t.Parallel()

	data := buildIVF(FourCCVP9, keyFrame, interFrame, keyFrame)
	dmx := NewReaderDemuxer(bytes.NewReader(data))
	defer dmx.Close()

	hdr, err := dmx.Demux()
	require.NoError(t, err)
	require.Equal(t, uint16(640), hdr.Width)
	require.Equal(t, uint16(360), hdr.Height)
	require.Equal(t, uint32(3), hdr.Frames)
	num, den := hdr.FrameRate()
	require.Equal(t, uint32(30), num)
	require.Equal(t, uint32(1), den)

	var pkts []Packet
	for {
		pkt, err := dmx.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		pkts = append(pkts, pkt)
	}

	require.Len(t, pkts, 3)
	require.True(t, pkts[0].Keyframe)
	require.Equal(t, uint(640), pkts[0].Width)
	require.Equal(t, uint(360), pkts[0].Height)
	require.False(t, pkts[1].Keyframe)
	require.True(t, pkts[2].Keyframe)
	require.Equal(t, uint64(1), pkts[1].PTS)

	require.Equal(t, int64(HeaderSize), pkts[0].Pos)
	require.Equal(t, pkts[0].Pos+FrameHeaderSize+int64(len(keyFrame)), pkts[1].Pos)
	require.Equal(t, interFrame, data[pkts[1].Pos+FrameHeaderSize:pkts[2].Pos])
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "video.ivf")
	require.NoError(t, os.WriteFile(path, buildIVF(FourCCVP9, keyFrame), 0o600))

	dmx := NewDemuxer(path)
	pkt, err := dmx.ReadPacket()
	require.NoError(t, err)
	require.True(t, pkt.Keyframe)
	require.NoError(t, dmx.Close())
}

func TestDemuxErrors(t *testing.T) {
	t.Parallel()

	valid := buildIVF(FourCCVP9, keyFrame)
	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{name: "signature", data: append([]byte("RIFF"), valid[4:]...), target: ErrInvalidSignature},
		{name: "codec", data: buildIVF("VP80", keyFrame), target: ErrUnsupportedCodec},
		{name: "short_header", data: valid[:10], target: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewReaderDemuxer(bytes.NewReader(tt.data)).Demux()
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestTruncatedFrame(t *testing.T) {
	t.Parallel()

	data := buildIVF(FourCCVP9, keyFrame)
	dmx := NewReaderDemuxer(bytes.NewReader(data[:len(data)-3]))
	_, err := dmx.ReadPacket()
	require.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestDeclaredFrameSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		size   uint32
		target error
	}{
		{name: "over_limit", size: 0xFFFFFFFF, target: ErrFrameTooLarge},
		{name: "past_end", size: MaxFrameSize, target: ErrTruncatedFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := buildIVF(FourCCVP9, keyFrame)
			binary.LittleEndian.PutUint32(data[HeaderSize:], tt.size)
			_, err := NewReaderDemuxer(bytes.NewReader(data)).ReadPacket()
			require.ErrorIs(t, err, tt.target)
		})
	}
}
