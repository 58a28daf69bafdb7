package usm

import (
	"fmt"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/page"
)

var (
	headerEndBanner   = []byte("#HEADER END     ===============\x00")
	metadataEndBanner = []byte("#METADATA END   ===============\x00")
)

const (
	videoHeaderPadding = 0x18
	audioHeaderPadding = 0x8
)

// prestream is the header and metadata section written between the info chunk and the
// packed stream.
type prestream struct {
	chunks []*chunk.Chunk
	// position is the size of the header section preceding the metadata section.
	position int
	// metadataSize includes the metadata end chunks.
	metadataSize int
	// seek holds the video metadata chunks whose ofs_byte fields still point into the
	// packed stream.
	seek []*chunk.Chunk
}

func (ps *prestream) size() int {
	return ps.position + ps.metadataSize
}

func (ps *prestream) add(c *chunk.Chunk, section *int) error {
	n, err := c.Len()
	if err != nil {
		return err
	}
	*section += n
	ps.chunks = append(ps.chunks, c)
	return nil
}

func sectionEnd(typ chunk.Type, channel int, banner []byte) *chunk.Chunk {
	return &chunk.Chunk{Type: typ, PayloadType: chunk.SectionEnd, Channel: channel, Data: banner}
}

func clonePages(pages []*page.Page) []*page.Page {
	out := make([]*page.Page, len(pages))
	for i, p := range pages {
		out[i] = p.Clone()
	}
	return out
}

// buildHeaderMetadata sizes the header and metadata sections. Seek offsets in the
// returned metadata are relative to the packed stream until patchSeekOffsets runs.
func buildHeaderMetadata(
	videos []gousm.VideoElement,
	audios []gousm.AudioElement,
	keyframes map[int][]Keyframe,
	encoding string,
) (ps *prestream, err error) {
	ps = &prestream{}

	for _, v := range videos {
		c := &chunk.Chunk{
			Type:        chunk.Video,
			PayloadType: chunk.Header,
			Channel:     v.ChannelNumber(),
			Pages:       []*page.Page{v.HeaderPage()},
			Padding:     chunk.Fixed(videoHeaderPadding),
			Encoding:    encoding,
		}
		if err = ps.add(c, &ps.position); err != nil {
			return
		}
	}
	for _, a := range audios {
		c := &chunk.Chunk{
			Type:        chunk.Audio,
			PayloadType: chunk.Header,
			Channel:     a.ChannelNumber(),
			Pages:       []*page.Page{a.HeaderPage()},
			Padding:     chunk.Fixed(audioHeaderPadding),
			Encoding:    encoding,
		}
		if err = ps.add(c, &ps.position); err != nil {
			return
		}
	}
	for _, v := range videos {
		if err = ps.add(sectionEnd(chunk.Video, v.ChannelNumber(), headerEndBanner), &ps.position); err != nil {
			return
		}
	}
	for _, a := range audios {
		if err = ps.add(sectionEnd(chunk.Audio, a.ChannelNumber(), headerEndBanner), &ps.position); err != nil {
			return
		}
	}

	for _, v := range videos {
		pages := v.MetadataPages()
		if pages == nil {
			for _, k := range keyframes[v.ChannelNumber()] {
				pages = append(pages, page.NewSeekInfo(k.Offset, uint32(k.Frame))) //nolint:gosec
			}
		} else {
			pages = clonePages(pages)
		}
		c := &chunk.Chunk{
			Type:        chunk.Video,
			PayloadType: chunk.Metadata,
			Channel:     v.ChannelNumber(),
			Pages:       pages,
			Padding:     chunk.MetadataPadding,
			Encoding:    encoding,
		}
		if err = ps.add(c, &ps.metadataSize); err != nil {
			return
		}
		ps.seek = append(ps.seek, c)
	}
	for _, a := range audios {
		if a.MetadataPages() == nil {
			continue
		}
		c := &chunk.Chunk{
			Type:        chunk.Audio,
			PayloadType: chunk.Metadata,
			Channel:     a.ChannelNumber(),
			Pages:       clonePages(a.MetadataPages()),
			Padding:     chunk.MetadataPadding,
			Encoding:    encoding,
		}
		if err = ps.add(c, &ps.metadataSize); err != nil {
			return
		}
	}
	for _, v := range videos {
		if err = ps.add(sectionEnd(chunk.Video, v.ChannelNumber(), metadataEndBanner), &ps.metadataSize); err != nil {
			return
		}
	}
	for _, a := range audios {
		if a.MetadataPages() == nil {
			continue
		}
		if err = ps.add(sectionEnd(chunk.Audio, a.ChannelNumber(), metadataEndBanner), &ps.metadataSize); err != nil {
			return
		}
	}
	return ps, nil
}

// patchSeekOffsets turns stream relative seek offsets into file offsets. The info
// sector, the header section and the whole metadata section precede the stream.
func (ps *prestream) patchSeekOffsets() error {
	base := int64(chunk.SectorSize + ps.position + ps.metadataSize)
	for _, c := range ps.seek {
		before, err := c.Len()
		if err != nil {
			return err
		}
		for _, p := range c.Pages {
			f, ok := p.Get(page.SeekOffsetKey)
			if !ok {
				continue
			}
			p.SetInt(page.SeekOffsetKey, f.Type, f.Int()+base)
		}
		after, err := c.Len()
		if err != nil {
			return err
		}
		if before != after {
			return fmt.Errorf("usm: metadata of channel %d changed size from %#x to %#x while patching", c.Channel, before, after)
		}
	}
	return nil
}
