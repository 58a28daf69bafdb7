package usm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/page"
	"github.com/ugparu/gousm/format/ivf"
	"github.com/ugparu/gousm/utils/logger"
)

const (
	// HeaderInfoName is the name of the video header page.
	HeaderInfoName = "VIDEO_HDRINFO"
	mpegCodecVP9   = 9
	videoMinChunk  = 3
)

// NewVideoFromIVF creates a video element from a VP9 IVF file. Every packet holds one
// frame together with its IVF frame header, the first one also the file header, so the
// demuxed element is the original file.
func NewVideoFromIVF(path string, channel int, alpha bool, opts ...Option) (*Video, error) {
	o := newOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	dmx := ivf.NewDemuxer(path)
	defer dmx.Close()
	hdr, err := dmx.Demux()
	if err != nil {
		return nil, err
	}

	var (
		ranges    []byteRange
		keyframes []int
		maxPacket int
		width     = uint(hdr.Width)
		height    = uint(hdr.Height)
	)
	for {
		pkt, err := dmx.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		start := pkt.Pos
		if len(ranges) == 0 {
			start = 0
		}
		end := pkt.Pos + ivf.FrameHeaderSize + int64(len(pkt.Data))
		ranges = append(ranges, byteRange{offset: start, size: int(end - start)})
		if pkt.Keyframe {
			keyframes = append(keyframes, len(ranges)-1)
			if pkt.Width != 0 && pkt.Height != 0 {
				width, height = pkt.Width, pkt.Height
			}
		}
		maxPacket = max(maxPacket, int(end-start))
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("usm: %s has no frames", path)
	}

	num, den := hdr.FrameRate()
	frames := int64(len(ranges))
	bitrate := info.Size() * 8 * int64(num) / (frames * int64(den))

	stream := gousm.StreamVideo
	if alpha {
		stream = gousm.StreamAlpha
	}
	crid := Crid{
		Version:  o.version,
		Filename: filepath.Base(path),
		Filesize: info.Size(),
		Stream:   stream,
		Channel:  channel,
		MinChunk: videoMinChunk,
		Minbuf:   minbuf(maxPacket),
		Bitrate:  bitrate,
	}

	w, h := int64(width), int64(height) //nolint:gosec
	header := page.New(HeaderInfoName).
		SetInt("width", page.Int32, w).
		SetInt("height", page.Int32, h).
		SetInt("mat_width", page.Int32, w).
		SetInt("mat_height", page.Int32, h).
		SetInt("disp_width", page.Int32, w).
		SetInt("disp_height", page.Int32, h).
		SetInt("scrn_width", page.Int32, 0).
		SetInt("mpeg_dcprec", page.Int8, 0).
		SetInt("mpeg_codec", page.Int8, mpegCodecVP9).
		SetInt("alpha_type", page.Int32, 0).
		SetInt("total_frames", page.Int32, frames).
		SetInt("framerate_n", page.Int32, int64(num)).
		SetInt("framerate_d", page.Int32, int64(den)).
		SetInt("metadata_count", page.Int32, 1).
		SetInt("metadata_size", page.Int32, 0).
		SetInt("ixsize", page.Int32, int64(maxPacket)).
		SetInt("pre_padding", page.Int32, 0).
		SetInt("max_picture_size", page.Int32, 0).
		SetInt("color_space", page.Int32, 0).
		SetInt("picture_type", page.Int32, 0)
	if alpha {
		header.SetInt("alpha_type", page.Int32, 1)
	}

	logger.Infof(dmx, "%d frames, %d key frames, %dx%d", frames, len(keyframes), width, height)

	open := func() (gousm.PacketSource, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		src := newRangeSource(&sharedFile{r: f}, ranges, keyframes)
		src.closer = f
		return src, nil
	}
	d := Descriptor{
		Channel: channel,
		Crid:    crid.Page(),
		Header:  header,
		Frames:  len(ranges),
	}
	return NewVideo(open, d, alpha), nil
}
