// Package vp9 reads the uncompressed header of VP9 frames.
package vp9

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
)

const (
	frameMarker = 2
	syncCode    = 0x498342
	csRGB       = 7
)

// Errors returned while probing a frame.
var (
	ErrInvalidFrameMarker = errors.New("vp9: invalid frame marker")
	ErrInvalidSyncCode    = errors.New("vp9: invalid key frame sync code")
)

// FrameHeader holds the fields of the uncompressed header the container needs.
type FrameHeader struct {
	Profile       uint8
	ShowExisting  bool
	KeyFrame      bool
	ShowFrame     bool
	ColorSpace    uint8
	Width, Height uint
}

func readFlag(br *bitio.Reader) (bool, error) {
	b, err := br.ReadBits(1)
	if err != nil {
		return false, err
	}
	return b == 1, nil
}

// ParseFrameHeader probes the start of a frame. Width and height are only set on key frames.
func ParseFrameHeader(data []byte) (h FrameHeader, err error) {
	br := bitio.NewReader(bytes.NewReader(data))

	marker, err := br.ReadBits(2)
	if err != nil {
		return
	}
	if marker != frameMarker {
		err = fmt.Errorf("%w: %d", ErrInvalidFrameMarker, marker)
		return
	}

	low, err := br.ReadBits(1)
	if err != nil {
		return
	}
	high, err := br.ReadBits(1)
	if err != nil {
		return
	}
	h.Profile = uint8(high<<1 | low)
	if h.Profile == 3 {
		if _, err = br.ReadBits(1); err != nil {
			return
		}
	}

	if h.ShowExisting, err = readFlag(br); err != nil || h.ShowExisting {
		return
	}

	frameType, err := br.ReadBits(1)
	if err != nil {
		return
	}
	h.KeyFrame = frameType == 0
	if h.ShowFrame, err = readFlag(br); err != nil {
		return
	}
	// error_resilient_mode
	if _, err = br.ReadBits(1); err != nil {
		return
	}
	if !h.KeyFrame {
		return
	}

	code, err := br.ReadBits(24)
	if err != nil {
		return
	}
	if code != syncCode {
		err = fmt.Errorf("%w: %#x", ErrInvalidSyncCode, code)
		return
	}

	if err = h.readColorConfig(br); err != nil {
		return
	}

	w, err := br.ReadBits(16)
	if err != nil {
		return
	}
	ht, err := br.ReadBits(16)
	if err != nil {
		return
	}
	h.Width, h.Height = uint(w)+1, uint(ht)+1
	return
}

func (h *FrameHeader) readColorConfig(br *bitio.Reader) (err error) {
	if h.Profile >= 2 {
		// ten_or_twelve_bit
		if _, err = br.ReadBits(1); err != nil {
			return
		}
	}
	cs, err := br.ReadBits(3)
	if err != nil {
		return
	}
	h.ColorSpace = uint8(cs)

	subsampling := h.Profile == 1 || h.Profile == 3
	if h.ColorSpace != csRGB {
		// color_range
		if _, err = br.ReadBits(1); err != nil {
			return
		}
		if subsampling {
			// subsampling_x, subsampling_y, reserved_zero
			_, err = br.ReadBits(3)
		}
		return
	}
	if subsampling {
		// reserved_zero
		_, err = br.ReadBits(1)
	}
	return
}
