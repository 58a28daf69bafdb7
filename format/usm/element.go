package usm

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/page"
)

const defaultFrameRate = 2997

var contentsEndBanner = []byte("#CONTENTS END   ===============\x00")

// Descriptor holds the pages and counts an element carries besides its packets.
type Descriptor struct {
	Channel int
	Crid    *page.Page
	Header  *page.Page
	Frames  int
	// Metadata pages are written instead of seek pages built from the stream keyframes.
	Metadata []*page.Page
}

type element struct {
	Descriptor
	open gousm.PacketOpener
}

func (e *element) ChannelNumber() int          { return e.Channel }
func (e *element) CridPage() *page.Page        { return e.Crid }
func (e *element) HeaderPage() *page.Page      { return e.Header }
func (e *element) MetadataPages() []*page.Page { return e.Metadata }
func (e *element) Len() int                    { return e.Frames }

// Filename returns the base name of the filename field of the CRID page.
func (e *element) Filename() string {
	if e.Crid == nil {
		return ""
	}
	name, err := e.Crid.Str("filename")
	if err != nil {
		return ""
	}
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

// frameRate reads the chunk frame rate from the header page.
func (e *element) frameRate() uint32 {
	if e.Header == nil {
		return defaultFrameRate
	}
	n, errN := e.Header.Int("framerate_n")
	d, errD := e.Header.Int("framerate_d")
	if errN != nil || errD != nil || n <= 0 || d <= 0 {
		return defaultFrameRate
	}
	return uint32(n * 100 / d) //nolint:gosec
}

func (e *element) packets(mode gousm.OpMode, key []byte, fn func(packet, key []byte) []byte) (gousm.PacketSource, error) {
	if mode != gousm.OpNone && len(key) == 0 {
		return nil, fmt.Errorf("%w: %v of channel %d", ErrKeyRequired, mode, e.Channel)
	}
	src, err := e.open()
	if err != nil {
		return nil, err
	}
	return withMask(src, fn, key), nil
}

// Video is a video or alpha channel.
type Video struct {
	element
	alpha bool
}

// NewVideo creates a video element reading packets from open.
func NewVideo(open gousm.PacketOpener, d Descriptor, alpha bool) *Video {
	return &Video{element: element{Descriptor: d, open: open}, alpha: alpha}
}

func (v *Video) String() string {
	if v.alpha {
		return fmt.Sprintf("ALPHA ch=%d", v.Channel)
	}
	return fmt.Sprintf("VIDEO ch=%d", v.Channel)
}

func (v *Video) IsAlpha() bool { return v.alpha }

// Packets returns the packets of the element with the mode applied.
func (v *Video) Packets(mode gousm.OpMode, key []byte) (gousm.PacketSource, error) {
	return v.packets(mode, key, videoMask(mode))
}

// Producer returns the chunk producer used when the element is interleaved.
func (v *Video) Producer(mode gousm.OpMode, key []byte) (gousm.VideoProducer, error) {
	src, err := v.Packets(mode, key)
	if err != nil {
		return nil, err
	}
	typ := chunk.Video
	if v.alpha {
		typ = chunk.Alpha
	}
	return &videoProducer{framer: newFramer(src, typ, v.Channel, v.frameRate())}, nil
}

// Audio is an audio channel.
type Audio struct {
	element
}

// NewAudio creates an audio element reading packets from open.
func NewAudio(open gousm.PacketOpener, d Descriptor) *Audio {
	return &Audio{element: element{Descriptor: d, open: open}}
}

func (a *Audio) String() string {
	return fmt.Sprintf("AUDIO ch=%d", a.Channel)
}

// Packets returns the packets of the element with the mode applied.
func (a *Audio) Packets(mode gousm.OpMode, key []byte) (gousm.PacketSource, error) {
	return a.packets(mode, key, audioMask(mode))
}

// Producer returns the chunk producer used when the element is interleaved.
func (a *Audio) Producer(mode gousm.OpMode, key []byte) (gousm.AudioProducer, error) {
	src, err := a.Packets(mode, key)
	if err != nil {
		return nil, err
	}
	return &audioProducer{framer: newFramer(src, chunk.Audio, a.Channel, defaultFrameRate)}, nil
}

// framer wraps each packet in a stream chunk. The packet that exhausts the source is
// followed by a contents end chunk in the same frame.
type framer struct {
	src     gousm.PacketSource
	typ     chunk.Type
	channel int
	rate    uint32
	index   int

	next     []byte
	nextKey  bool
	nextErr  error
	prefetch bool
}

func newFramer(src gousm.PacketSource, typ chunk.Type, channel int, rate uint32) *framer {
	return &framer{src: src, typ: typ, channel: channel, rate: rate}
}

func (f *framer) pull() ([]byte, bool, error) {
	if f.prefetch {
		f.prefetch = false
		return f.next, f.nextKey, f.nextErr
	}
	return f.src.Next()
}

func (f *framer) frame() (chunks []*chunk.Chunk, keyframe bool, err error) {
	data, keyframe, err := f.pull()
	if err != nil {
		return nil, false, err
	}

	chunks = append(chunks, &chunk.Chunk{
		Type:        f.typ,
		PayloadType: chunk.Stream,
		Channel:     f.channel,
		FrameTime:   uint32(f.index * 999 / 10), //nolint:gosec
		FrameRate:   f.rate,
		Data:        data,
		Padding:     chunk.Align(0x20),
	})
	f.index++

	f.next, f.nextKey, f.nextErr = f.src.Next()
	f.prefetch = true
	if errors.Is(f.nextErr, io.EOF) {
		chunks = append(chunks, &chunk.Chunk{
			Type:        f.typ,
			PayloadType: chunk.SectionEnd,
			Channel:     f.channel,
			FrameRate:   f.rate,
			Data:        contentsEndBanner,
		})
	}
	return chunks, keyframe, nil
}

func (f *framer) Close() error {
	return f.src.Close()
}

type videoProducer struct {
	*framer
}

func (p *videoProducer) Next() ([]*chunk.Chunk, bool, error) {
	return p.frame()
}

type audioProducer struct {
	*framer
}

func (p *audioProducer) Next() ([]*chunk.Chunk, error) {
	chunks, _, err := p.frame()
	return chunks, err
}
