package usm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/utils/logger"
)

const scratchBufSize = 64 * 1024

// scratch is the temporary file holding the packed stream of one write.
type scratch struct {
	*os.File
	size int64
}

func (s *scratch) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// pack interleaves the elements into a scratch file and builds the chunks that precede it.
func (u *Usm) pack(mode gousm.OpMode) (pre []*chunk.Chunk, s *scratch, err error) {
	f, err := os.CreateTemp("", "usm-stream-*")
	if err != nil {
		return
	}
	s = &scratch{File: f}
	defer func() {
		if err != nil {
			_ = s.Close()
			s = nil
		}
	}()

	bw := bufio.NewWriterSize(f, scratchBufSize)
	res, err := packStream(bw, u.maxFrame, u.videos, u.audios, mode, u.videoKey, u.audioKey)
	if err != nil {
		return
	}
	if err = bw.Flush(); err != nil {
		return
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return
	}
	s.size = res.size

	ps, err := buildHeaderMetadata(u.videos, u.audios, res.keyframes, u.encoding)
	if err != nil {
		return
	}
	if err = ps.patchSeekOffsets(); err != nil {
		return
	}
	info, err := u.infoChunk(int64(ps.size())+res.size, res.maxPacket)
	if err != nil {
		return
	}

	logger.WithFields(u, logrus.Fields{
		"mode":        mode,
		"stream_size": res.size,
		"header_size": ps.position,
		"meta_size":   ps.metadataSize,
		"max_packet":  res.maxPacket,
	}).Debugf("packed stream")
	return append([]*chunk.Chunk{info}, ps.chunks...), s, nil
}

// ChunkIterator walks the chunks of a container being written. It supports one traversal.
type ChunkIterator struct {
	pre      []*chunk.Chunk
	scratch  *scratch
	r        *bufio.Reader
	encoding string
	pos      int64
}

// Chunks interleaves the elements and returns an iterator over the resulting chunks.
func (u *Usm) Chunks(mode gousm.OpMode) (*ChunkIterator, error) {
	pre, s, err := u.pack(mode)
	if err != nil {
		return nil, err
	}
	return &ChunkIterator{
		pre:      pre,
		scratch:  s,
		r:        bufio.NewReaderSize(s, scratchBufSize),
		encoding: u.encoding,
	}, nil
}

// Next returns the next chunk or io.EOF after the last one.
func (it *ChunkIterator) Next() (*chunk.Chunk, error) {
	if len(it.pre) > 0 {
		c := it.pre[0]
		it.pre = it.pre[1:]
		return c, nil
	}
	if it.scratch == nil || it.pos >= it.scratch.size {
		return nil, io.EOF
	}

	header, err := it.r.Peek(chunk.HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("usm: packed stream at %#x: %w", it.pos, err)
	}
	size, pad, err := chunk.SizeAndPadding(header)
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if _, err = io.ReadFull(it.r, data); err != nil {
		return nil, err
	}
	if _, err = it.r.Discard(pad); err != nil {
		return nil, err
	}
	it.pos += int64(size + pad)
	return chunk.Parse(data, it.encoding)
}

// Close removes the scratch file.
func (it *ChunkIterator) Close() error {
	if it.scratch == nil {
		return nil
	}
	err := it.scratch.Close()
	it.scratch = nil
	return err
}

type streamReader struct {
	io.Reader
	scratch *scratch
}

func (r *streamReader) Close() error {
	return r.scratch.Close()
}

// Stream interleaves the elements and returns the bytes of the whole container. The
// packed stream is read in sector sized blocks. Closing the reader removes the scratch file.
func (u *Usm) Stream(mode gousm.OpMode) (io.ReadCloser, error) {
	pre, s, err := u.pack(mode)
	if err != nil {
		return nil, err
	}
	head := new(bytes.Buffer)
	for _, c := range pre {
		if _, err = c.WriteTo(head); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	body := bufio.NewReaderSize(io.LimitReader(s, s.size), chunk.SectorSize)
	return &streamReader{Reader: io.MultiReader(head, body), scratch: s}, nil
}

// Save writes the container to path.
func (u *Usm) Save(path string, mode gousm.OpMode) (err error) {
	stream, err := u.Stream(mode)
	if err != nil {
		return
	}
	defer stream.Close()

	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, chunk.SectorSize)
	_, err = io.CopyBuffer(struct{ io.Writer }{f}, stream, buf)
	return
}
