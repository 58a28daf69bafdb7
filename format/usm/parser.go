package usm

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/page"
	"github.com/ugparu/gousm/utils/buffer"
	"github.com/ugparu/gousm/utils/logger"
)

// parser scans a container once and groups its chunks by channel.
type parser struct {
	r        io.ReadSeeker
	size     int64
	encoding string
	lenient  bool

	crids  []*page.Page
	videos channels
	audios channels
	alphas channels
}

func newParser(r io.ReadSeeker, size int64, encoding string, lenient bool) *parser {
	return &parser{
		r:        r,
		size:     size,
		encoding: encoding,
		lenient:  lenient,
		videos:   channels{},
		audios:   channels{},
		alphas:   channels{},
	}
}

func (p *parser) String() string {
	return "USM_PARSER"
}

func (p *parser) parse() error {
	if _, err := p.r.Seek(0, io.SeekStart); err != nil {
		return err
	}

	for pos := int64(0); pos < p.size; {
		buf, n, err := p.read(p.size - pos)
		if err != nil {
			return p.stop(pos, fmt.Errorf("usm: chunk at %#x: %w", pos, err))
		}
		c, err := chunk.Parse(buf.Data(), p.encoding)
		buf.Release()

		start := pos
		pos += n
		if err != nil {
			if !p.lenient {
				return fmt.Errorf("usm: chunk at %#x: %w", start, err)
			}
			logger.Errorf(p, "skipping chunk at %#x: %v", start, err)
			continue
		}
		if err = p.dispatch(c, start); err != nil {
			return err
		}
	}
	return nil
}

// read returns the header and payload of the chunk at the current position and leaves
// the reader after its padding. n is the number of bytes the chunk occupies.
func (p *parser) read(remaining int64) (buf buffer.PooledBuffer, n int64, err error) {
	var header [chunk.HeaderSize]byte
	if _, err = io.ReadFull(p.r, header[:]); err != nil {
		return
	}
	size, pad, err := chunk.SizeAndPadding(header[:])
	if err != nil {
		return
	}
	if int64(size) > remaining {
		err = fmt.Errorf("%w: %#x bytes declared, %#x left", chunk.ErrShortChunk, size, remaining)
		return
	}

	buf = buffer.Get(size)
	copy(buf.Data(), header[:])
	if _, err = io.ReadFull(p.r, buf.Data()[chunk.HeaderSize:]); err != nil {
		buf.Release()
		return nil, 0, err
	}
	if _, err = p.r.Seek(int64(pad), io.SeekCurrent); err != nil {
		buf.Release()
		return nil, 0, err
	}
	return buf, int64(size + pad), nil
}

// stop ends a scan that can no longer find the next chunk boundary.
func (p *parser) stop(pos int64, err error) error {
	if !p.lenient {
		return err
	}
	logger.Errorf(p, "stopping scan at %#x of %#x: %v", pos, p.size, err)
	return nil
}

func (p *parser) dispatch(c *chunk.Chunk, offset int64) error {
	switch c.Type {
	case chunk.Info:
		if !c.PayloadType.HasPages() {
			logger.WithFields(p, logrus.Fields{"payload": fmt.Sprintf("% x", c.Data)}).
				Warningf("received info chunk payload that's not a list")
			return nil
		}
		p.crids = append(p.crids, c.Pages...)
		return nil
	case chunk.Video:
		return p.accumulate(p.videos, c, offset)
	case chunk.Audio:
		return p.accumulate(p.audios, c, offset)
	case chunk.Alpha:
		return p.accumulate(p.alphas, c, offset)
	case chunk.Subtitle, chunk.Cue:
		logger.Debugf(p, "skipping %v at %#x", c, offset)
		return nil
	default:
		return fmt.Errorf("%w: %v", chunk.ErrInvalidSignature, c.Type)
	}
}

func (p *parser) accumulate(cs channels, c *chunk.Chunk, offset int64) error {
	switch c.PayloadType {
	case chunk.Stream:
		ch := cs.get(c.Channel)
		ch.stream = append(ch.stream, byteRange{offset: offset + int64(c.PayloadOffset), size: len(c.Data)})
	case chunk.SectionEnd:
		logger.WithFields(p, logrus.Fields{"payload": string(c.Data), "offset": offset}).
			Debugf("%v section end", c.Type)
	case chunk.Header:
		if len(c.Pages) == 0 {
			return errors.New("usm: header chunk without pages")
		}
		cs.get(c.Channel).header = c.Pages[0]
	case chunk.Metadata:
		cs.get(c.Channel).metadata = c.Pages
	default:
		return fmt.Errorf("%w: %d", chunk.ErrUnknownPayloadType, c.PayloadType)
	}
	return nil
}
