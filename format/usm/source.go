package usm

import (
	"fmt"
	"io"
	"sync"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/mask"
)

// sharedFile serializes access to one reader shared by every element of a container.
// The lock is held for a single seek and read.
type sharedFile struct {
	mu sync.Mutex
	r  io.ReadSeeker
}

func (f *sharedFile) readAt(offset int64, size int) ([]byte, error) {
	buf := make([]byte, size)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, fmt.Errorf("usm: reading %d bytes at %#x: %w", size, offset, err)
	}
	return buf, nil
}

// rangeSource yields the packets stored at the given byte ranges of a shared file.
type rangeSource struct {
	file      *sharedFile
	ranges    []byteRange
	keyframes map[int]struct{}
	index     int
	closer    io.Closer
}

func newRangeSource(file *sharedFile, ranges []byteRange, keyframes []int) *rangeSource {
	src := &rangeSource{file: file, ranges: ranges}
	if len(keyframes) > 0 {
		src.keyframes = make(map[int]struct{}, len(keyframes))
		for _, k := range keyframes {
			src.keyframes[k] = struct{}{}
		}
	}
	return src
}

func (s *rangeSource) Next() (data []byte, keyframe bool, err error) {
	if s.index >= len(s.ranges) {
		return nil, false, io.EOF
	}
	r := s.ranges[s.index]
	if data, err = s.file.readAt(r.offset, r.size); err != nil {
		return
	}
	_, keyframe = s.keyframes[s.index]
	s.index++
	return
}

func (s *rangeSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// maskedSource applies a mask function to every packet of a source.
type maskedSource struct {
	gousm.PacketSource
	fn  func(packet, key []byte) []byte
	key []byte
}

func (s *maskedSource) Next() (data []byte, keyframe bool, err error) {
	if data, keyframe, err = s.PacketSource.Next(); err != nil {
		return
	}
	return s.fn(data, s.key), keyframe, nil
}

func videoMask(mode gousm.OpMode) func(packet, key []byte) []byte {
	switch mode {
	case gousm.OpEncrypt:
		return mask.EncryptVideo
	case gousm.OpDecrypt:
		return mask.DecryptVideo
	default:
		return nil
	}
}

func audioMask(mode gousm.OpMode) func(packet, key []byte) []byte {
	switch mode {
	case gousm.OpEncrypt, gousm.OpDecrypt:
		return mask.Audio
	default:
		return nil
	}
}

func withMask(src gousm.PacketSource, fn func(packet, key []byte) []byte, key []byte) gousm.PacketSource {
	if fn == nil {
		return src
	}
	return &maskedSource{PacketSource: src, fn: fn, key: key}
}
