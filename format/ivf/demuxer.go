// Package ivf reads VP9 elementary streams stored in IVF files.
package ivf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ugparu/gousm/codec/vp9"
)

// Sizes of the file header written by common encoders and of the per-frame header.
const (
	HeaderSize      = 32
	FrameHeaderSize = 12
	// MaxFrameSize bounds the size a frame header may declare.
	MaxFrameSize = 64 << 20
)

var signature = []byte("DKIF")

// Errors returned by the demuxer.
var (
	ErrInvalidSignature = errors.New("ivf: invalid signature")
	ErrUnsupportedCodec = errors.New("ivf: unsupported codec")
	ErrTruncatedFrame   = errors.New("ivf: truncated frame")
	ErrFrameTooLarge    = errors.New("ivf: frame too large")
)

// FourCCVP9 is the only codec the demuxer accepts.
const FourCCVP9 = "VP90"

// Header is the IVF file header.
type Header struct {
	FourCC        string
	Width, Height uint16
	// The time base of the presentation timestamps is Scale/Rate seconds.
	Rate, Scale uint32
	Frames      uint32
}

// FrameRate returns frames per second as a numerator and denominator.
func (h Header) FrameRate() (num, den uint32) {
	if h.Rate == 0 || h.Scale == 0 {
		return 30000, 1001
	}
	return h.Rate, h.Scale
}

// Packet is one compressed frame.
type Packet struct {
	Data     []byte
	PTS      uint64
	Keyframe bool
	// Pos is the file position of the 12 byte frame header preceding Data.
	Pos int64
	// Width and Height are set from the frame header of key frames.
	Width, Height uint
}

type Demuxer struct {
	r      io.Reader
	closer io.Closer
	url    string
	header *Header
	frame  [FrameHeaderSize]byte
	pos    int64
}

// NewDemuxer creates a demuxer reading the file at url once Demux is called.
func NewDemuxer(url string) *Demuxer {
	return &Demuxer{url: url}
}

// NewReaderDemuxer creates a demuxer over an already open stream.
func NewReaderDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{r: r, url: "reader"}
}

func (dmx *Demuxer) String() string {
	return fmt.Sprintf("IVF_DEMUXER url=%s", dmx.url)
}

// Demux opens the source and reads the file header.
func (dmx *Demuxer) Demux() (hdr Header, err error) {
	if dmx.header != nil {
		return *dmx.header, nil
	}
	if dmx.r == nil {
		var f *os.File
		if f, err = os.Open(dmx.url); err != nil {
			return
		}
		dmx.r, dmx.closer = f, f
	}

	buf := make([]byte, HeaderSize)
	if _, err = io.ReadFull(dmx.r, buf); err != nil {
		err = fmt.Errorf("ivf: reading header: %w", err)
		return
	}
	if !bytes.Equal(buf[:4], signature) {
		err = fmt.Errorf("%w: %q", ErrInvalidSignature, buf[:4])
		return
	}
	hdrLen := int(binary.LittleEndian.Uint16(buf[6:]))

	hdr = Header{
		FourCC: string(buf[8:12]),
		Width:  binary.LittleEndian.Uint16(buf[12:]),
		Height: binary.LittleEndian.Uint16(buf[14:]),
		Rate:   binary.LittleEndian.Uint32(buf[16:]),
		Scale:  binary.LittleEndian.Uint32(buf[20:]),
		Frames: binary.LittleEndian.Uint32(buf[24:]),
	}
	if hdr.FourCC != FourCCVP9 {
		err = fmt.Errorf("%w: %q", ErrUnsupportedCodec, hdr.FourCC)
		return
	}
	dmx.pos = HeaderSize
	if hdrLen > HeaderSize {
		if _, err = io.CopyN(io.Discard, dmx.r, int64(hdrLen-HeaderSize)); err != nil {
			return
		}
		dmx.pos = int64(hdrLen)
	}

	dmx.header = &hdr
	return hdr, nil
}

// ReadPacket returns the next frame or io.EOF after the last one.
func (dmx *Demuxer) ReadPacket() (pkt Packet, err error) {
	if dmx.header == nil {
		if _, err = dmx.Demux(); err != nil {
			return
		}
	}

	if _, err = io.ReadFull(dmx.r, dmx.frame[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedFrame
		}
		return
	}
	size := int64(binary.LittleEndian.Uint32(dmx.frame[:4]))
	if size > MaxFrameSize {
		err = fmt.Errorf("%w: %d bytes at %#x", ErrFrameTooLarge, size, dmx.pos)
		return
	}
	pkt.PTS = binary.LittleEndian.Uint64(dmx.frame[4:])
	pkt.Pos = dmx.pos
	dmx.pos += FrameHeaderSize + size

	// The buffer grows with the bytes actually read.
	data := new(bytes.Buffer)
	if _, err = io.CopyN(data, dmx.r, size); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		err = fmt.Errorf("%w: %w", ErrTruncatedFrame, err)
		return
	}
	pkt.Data = data.Bytes()

	fh, err := vp9.ParseFrameHeader(pkt.Data)
	if err != nil {
		err = fmt.Errorf("ivf: frame at pts %d: %w", pkt.PTS, err)
		return
	}
	pkt.Keyframe = fh.KeyFrame
	pkt.Width, pkt.Height = fh.Width, fh.Height
	return
}

func (dmx *Demuxer) Close() error {
	if dmx.closer == nil {
		return nil
	}
	err := dmx.closer.Close()
	dmx.closer = nil
	return err
}
