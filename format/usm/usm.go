// Package usm reads, writes and demultiplexes CRI USM containers.
//
// A container starts with a sector holding the info chunk, a page list describing the
// container and each channel. Header and metadata chunks of every channel follow, then the
// interleaved stream chunks of all channels.
package usm

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/mask"
	"github.com/ugparu/gousm/codec/page"
	"github.com/ugparu/gousm/utils/logger"
)

var signature = []byte("CRID")

// Usm is a container made of video, audio and alpha elements.
type Usm struct {
	videos []gousm.VideoElement
	audios []gousm.AudioElement
	alphas []gousm.VideoElement

	version  uint32
	videoKey []byte
	audioKey []byte
	usmCrid  *page.Page
	encoding string

	maxFrame int
	closer   io.Closer
}

func byChannel[T gousm.Element](elements []T) []T {
	out := slices.Clone(elements)
	slices.SortStableFunc(out, func(a, b T) int {
		return cmp.Compare(a.ChannelNumber(), b.ChannelNumber())
	})
	return out
}

func checkComplete[T gousm.Element](elements []T) error {
	for _, e := range elements {
		if e.CridPage() == nil || e.HeaderPage() == nil {
			return fmt.Errorf("%w: channel %d", ErrIncomplete, e.ChannelNumber())
		}
	}
	return nil
}

// New builds a container from elements. At least one video is required.
func New(videos []gousm.VideoElement, audios []gousm.AudioElement, alphas []gousm.VideoElement, opts ...Option) (*Usm, error) {
	if len(videos) == 0 {
		return nil, ErrNoVideo
	}
	if err := checkComplete(videos); err != nil {
		return nil, err
	}
	if err := checkComplete(audios); err != nil {
		return nil, err
	}
	if err := checkComplete(alphas); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	if err := page.CheckEncoding(o.encoding); err != nil {
		return nil, err
	}

	u := &Usm{
		videos:   byChannel(videos),
		audios:   byChannel(audios),
		alphas:   byChannel(alphas),
		version:  o.version,
		usmCrid:  o.usmCrid,
		encoding: o.encoding,
	}
	if o.key != nil {
		u.videoKey, u.audioKey = mask.GenerateKeys(*o.key)
	}
	for _, e := range u.elements() {
		u.maxFrame = max(u.maxFrame, e.Len())
	}

	logger.WithFields(u, logrus.Fields{
		"version":           u.version,
		"is_key_given":      o.key != nil,
		"is_usm_crid_given": o.usmCrid != nil,
		"num_videos":        len(u.videos),
		"num_audios":        len(u.audios),
		"num_alphas":        len(u.alphas),
	}).Infof("initialising USM")
	return u, nil
}

// Open reads the container at path. The file stays open until Close.
func Open(path string, opts ...Option) (*Usm, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	logger.WithFields(filepath.Base(path), logrus.Fields{"size": info.Size()}).Infof("loading USM from file")
	u, err := NewReader(f, info.Size(), opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	u.closer = f
	return u, nil
}

// NewReader reads a container of the given size from r. Elements read their packets
// from r lazily, so r must stay usable while the container is in use.
func NewReader(r io.ReadSeeker, size int64, opts ...Option) (*Usm, error) {
	o := newOptions(opts)
	if size <= chunk.HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, size)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	sig := make([]byte, len(signature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, signature) {
		return nil, fmt.Errorf("%w: % x", ErrInvalidSignature, sig)
	}

	lenient := logger.Enabled(logrus.DebugLevel)
	if o.lenient != nil {
		lenient = *o.lenient
	}
	p := newParser(r, size, o.encoding, lenient)
	if err := p.parse(); err != nil {
		return nil, err
	}

	file := &sharedFile{r: r}
	var (
		videos, alphas []gousm.VideoElement
		audios         []gousm.AudioElement
		version        uint32
		hasVersion     bool
	)
	for _, n := range p.videos.numbers() {
		d, err := p.descriptor(p.videos[n], n, gousm.StreamVideo)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if v, err := d.Crid.Int("fmtver"); err == nil {
				version, hasVersion = uint32(v), true //nolint:gosec
			}
		}
		videos = append(videos, NewVideo(file.opener(p.videos[n], true), d, false))
	}
	for _, n := range p.audios.numbers() {
		d, err := p.descriptor(p.audios[n], n, gousm.StreamAudio)
		if err != nil {
			return nil, err
		}
		audios = append(audios, NewAudio(file.opener(p.audios[n], false), d))
	}
	for _, n := range p.alphas.numbers() {
		d, err := p.descriptor(p.alphas[n], n, gousm.StreamAlpha)
		if err != nil {
			return nil, err
		}
		alphas = append(alphas, NewVideo(file.opener(p.alphas[n], true), d, true))
	}

	usmCrid := p.findCrid(-1, nil)
	if usmCrid == nil {
		return nil, ErrMissingUsmCrid
	}
	if !hasVersion {
		return nil, ErrNoVersion
	}

	opts = append(slices.Clip(opts), WithVersion(version), WithUsmCrid(usmCrid))
	return New(videos, audios, alphas, opts...)
}

// findCrid returns the first CRID page of a channel. A nil stream matches any stmid.
func (p *parser) findCrid(channel int, stream *gousm.StreamType) *page.Page {
	for _, c := range p.crids {
		chno, err := c.Int("chno")
		if err != nil || chno != int64(channel) {
			continue
		}
		if stream != nil {
			if stmid, err := c.Int("stmid"); err != nil || stmid != int64(*stream) {
				continue
			}
		}
		return c
	}
	return nil
}

func (p *parser) descriptor(ch *channel, n int, stream gousm.StreamType) (d Descriptor, err error) {
	crid := p.findCrid(n, &stream)
	if crid == nil {
		err = fmt.Errorf("%w: %v ch %d", ErrMissingCrid, stream, n)
		return
	}
	return Descriptor{Channel: n, Crid: crid, Header: ch.header, Frames: len(ch.stream)}, nil
}

// opener reads the packets of a parsed channel. Video channels carry the key frames
// listed in their seek pages.
func (f *sharedFile) opener(ch *channel, video bool) gousm.PacketOpener {
	var keyframes []int
	if video {
		keyframes = page.Keyframes(ch.metadata)
	}
	return func() (gousm.PacketSource, error) {
		return newRangeSource(f, ch.stream, keyframes), nil
	}
}

func (u *Usm) String() string {
	if len(u.videos) == 0 {
		return "USM"
	}
	return fmt.Sprintf("USM %s", u.Filename())
}

// Videos returns the video channels sorted by channel number.
func (u *Usm) Videos() []gousm.VideoElement { return u.videos }

// Audios returns the audio channels sorted by channel number.
func (u *Usm) Audios() []gousm.AudioElement { return u.audios }

// Alphas returns the alpha channels. They are read but never written.
func (u *Usm) Alphas() []gousm.VideoElement { return u.alphas }

// Version returns the format version stored in the CRID pages.
func (u *Usm) Version() uint32 { return u.version }

// MaxFrame returns the frame count of the longest element.
func (u *Usm) MaxFrame() int { return u.maxFrame }

// Encoding returns the text encoding of page strings.
func (u *Usm) Encoding() string { return u.encoding }

// HasKey reports whether stream keys were derived.
func (u *Usm) HasKey() bool { return u.videoKey != nil }

// Close releases the file a container was opened from.
func (u *Usm) Close() error {
	if u.closer == nil {
		return nil
	}
	err := u.closer.Close()
	u.closer = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
