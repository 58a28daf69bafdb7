// Package chunk encodes and decodes the self-framing chunks a USM container is made of.
//
// Every chunk starts with a 0x20 byte big-endian header:
//
//	0x00 [4]  signature ("CRID", "@SFV", "@SFA", "@ALP", "@SBT", "@CUE")
//	0x04 u32  size of everything after this field (0x18 + payload + padding)
//	0x08 u8   reserved
//	0x09 u8   payload offset from 0x08 (0x18)
//	0x0A u16  padding
//	0x0C u8   channel number
//	0x0D u16  reserved
//	0x0F u8   payload type (low two bits)
//	0x10 u32  frame time
//	0x14 u32  frame rate
//	0x18 [8]  reserved
package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ugparu/gousm/codec/page"
)

// HeaderSize is the size of the fixed chunk header.
const HeaderSize = 0x20

const (
	sizeFieldEnd  = 0x08
	payloadOffset = HeaderSize - sizeFieldEnd
)

// Errors returned by the chunk codec.
var (
	ErrInvalidSignature   = errors.New("chunk: invalid signature")
	ErrShortChunk         = errors.New("chunk: data shorter than its header declares")
	ErrUnknownPayloadType = errors.New("chunk: unknown payload type")
	ErrPayloadShape       = errors.New("chunk: payload does not match its payload type")
)

// Type is the chunk signature.
type Type uint32

// Chunk types.
const (
	Info     Type = 0x43524944 // CRID
	Video    Type = 0x40534656 // @SFV
	Audio    Type = 0x40534641 // @SFA
	Alpha    Type = 0x40414C50 // @ALP
	Subtitle Type = 0x40534254 // @SBT
	Cue      Type = 0x40435545 // @CUE
)

// ParseType validates a four byte signature.
func ParseType(sig []byte) (Type, error) {
	if len(sig) < 4 {
		return 0, ErrShortChunk
	}
	t := Type(binary.BigEndian.Uint32(sig))
	switch t {
	case Info, Video, Audio, Alpha, Subtitle, Cue:
		return t, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSignature, sig[:4])
	}
}

// String returns the signature text.
func (t Type) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(t))
	return string(b[:])
}

// PayloadType tells how the payload of a chunk is interpreted.
type PayloadType uint8

// Payload types.
const (
	Stream     PayloadType = 0 // Raw elementary stream bytes.
	Header     PayloadType = 1 // A page list describing the channel.
	SectionEnd PayloadType = 2 // A text banner closing a section.
	Metadata   PayloadType = 3 // A page list with seek information.
)

// String returns the human-readable name of the payload type.
func (pt PayloadType) String() string {
	switch pt {
	case Stream:
		return "stream"
	case Header:
		return "header"
	case SectionEnd:
		return "section_end"
	case Metadata:
		return "metadata"
	default:
		return fmt.Sprintf("payload(%d)", uint8(pt))
	}
}

// HasPages reports whether the payload is a page list.
func (pt PayloadType) HasPages() bool {
	return pt == Header || pt == Metadata
}

// Chunk is one framed unit of a container.
// Pages is the payload of Header and Metadata chunks, Data the payload of Stream and
// SectionEnd chunks.
type Chunk struct {
	Type        Type
	PayloadType PayloadType
	Channel     int
	FrameTime   uint32
	FrameRate   uint32

	Data  []byte
	Pages []*page.Page

	Padding  Padding
	Encoding string

	// PayloadOffset is the position of the payload relative to the chunk start.
	// It is only set on parsed chunks.
	PayloadOffset int
}

// String implements fmt.Stringer.
func (c *Chunk) String() string {
	return fmt.Sprintf("%v/%v/ch%d", c.Type, c.PayloadType, c.Channel)
}

func (c *Chunk) payload() ([]byte, error) {
	switch c.PayloadType {
	case Header, Metadata:
		if c.Data != nil {
			return nil, fmt.Errorf("%w: %v carries raw bytes", ErrPayloadShape, c)
		}
		return page.Pack(c.Pages, c.Encoding)
	case Stream, SectionEnd:
		if c.Pages != nil {
			return nil, fmt.Errorf("%w: %v carries pages", ErrPayloadShape, c)
		}
		return c.Data, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadType, c.PayloadType)
	}
}

func (c *Chunk) padding(payloadSize int) int {
	if c.Padding == nil {
		return 0
	}
	return c.Padding(HeaderSize + payloadSize)
}

// Len returns the packed size of the chunk including padding.
func (c *Chunk) Len() (int, error) {
	p, err := c.payload()
	if err != nil {
		return 0, err
	}
	return HeaderSize + len(p) + c.padding(len(p)), nil
}

// Pack serializes the chunk.
func (c *Chunk) Pack() ([]byte, error) {
	p, err := c.payload()
	if err != nil {
		return nil, err
	}
	pad := c.padding(len(p))
	if pad < 0 || pad > math.MaxUint16 {
		return nil, fmt.Errorf("chunk: padding %d of %v out of range", pad, c)
	}
	if c.Channel < 0 || c.Channel > math.MaxUint8 {
		return nil, fmt.Errorf("chunk: channel %d out of range", c.Channel)
	}

	out := make([]byte, HeaderSize+len(p)+pad)
	binary.BigEndian.PutUint32(out[0x00:], uint32(c.Type))
	binary.BigEndian.PutUint32(out[0x04:], uint32(payloadOffset+len(p)+pad)) //nolint:gosec
	out[0x09] = payloadOffset
	binary.BigEndian.PutUint16(out[0x0A:], uint16(pad))
	out[0x0C] = byte(c.Channel)
	out[0x0F] = byte(c.PayloadType)
	binary.BigEndian.PutUint32(out[0x10:], c.FrameTime)
	binary.BigEndian.PutUint32(out[0x14:], c.FrameRate)
	copy(out[HeaderSize:], p)
	return out, nil
}

// WriteTo implements io.WriterTo.
func (c *Chunk) WriteTo(w io.Writer) (int64, error) {
	b, err := c.Pack()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// SizeAndPadding reads a chunk header and returns the length of header plus payload and
// the number of padding bytes that follow.
func SizeAndPadding(header []byte) (size, padding int, err error) {
	if len(header) < 0x0C {
		err = fmt.Errorf("%w: header window of %d bytes", ErrShortChunk, len(header))
		return
	}
	total := int(binary.BigEndian.Uint32(header[0x04:]))
	offset := int(header[0x09])
	padding = int(binary.BigEndian.Uint16(header[0x0A:]))
	payload := total - offset - padding
	if offset < payloadOffset || payload < 0 {
		err = fmt.Errorf("%w: size %#x, offset %#x, padding %#x", ErrShortChunk, total, offset, padding)
		return
	}
	size = sizeFieldEnd + offset + payload
	return
}

// Parse decodes one chunk. data holds the header and payload; trailing padding may be
// present or absent. Page payloads are decoded with the given string encoding.
func Parse(data []byte, encoding string) (*Chunk, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortChunk, len(data))
	}
	typ, err := ParseType(data)
	if err != nil {
		return nil, err
	}
	size, pad, err := SizeAndPadding(data)
	if err != nil {
		return nil, err
	}
	if size > len(data) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortChunk, size, len(data))
	}

	c := &Chunk{
		Type:          typ,
		PayloadType:   PayloadType(data[0x0F] & 0x3),
		Channel:       int(data[0x0C]),
		FrameTime:     binary.BigEndian.Uint32(data[0x10:]),
		FrameRate:     binary.BigEndian.Uint32(data[0x14:]),
		Padding:       Fixed(pad),
		Encoding:      encoding,
		PayloadOffset: sizeFieldEnd + int(data[0x09]),
	}
	payload := data[c.PayloadOffset:size]

	switch c.PayloadType {
	case Header, Metadata:
		if c.Pages, err = page.Unpack(payload, encoding); err != nil {
			return nil, fmt.Errorf("chunk: %v: %w", c, err)
		}
	case Stream, SectionEnd:
		c.Data = bytes.Clone(payload)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadType, c.PayloadType)
	}
	return c, nil
}
