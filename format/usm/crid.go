package usm

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/page"
)

const (
	// CridPageName is the name of the descriptor pages in the info chunk.
	CridPageName = "CRIUSF_DIR_STREAM"
	// SizeUnknown asks CridPage for a page that must already exist.
	SizeUnknown int64 = -1

	// minbufScale relates the largest packed chunk to the minbuf field of real files.
	minbufScale = 1.98746
	minbufAlign = 0x10
)

// Crid holds the fields of a CRID page. The container page and every channel page of
// one info chunk share this layout.
type Crid struct {
	Version  uint32
	Filename string
	Filesize int64
	Datasize int64
	Stream   gousm.StreamType
	Channel  int
	MinChunk int
	Minbuf   int64
	Bitrate  int64
}

// Page builds the page.
func (c Crid) Page() *page.Page {
	return page.New(CridPageName).
		SetInt("fmtver", page.Int32, int64(c.Version)).
		SetString("filename", c.Filename).
		SetInt("filesize", page.Int32, c.Filesize).
		SetInt("datasize", page.Int32, c.Datasize).
		SetInt("stmid", page.Int32, int64(c.Stream)).
		SetInt("chno", page.Int16, int64(c.Channel)).
		SetInt("minchk", page.Int16, int64(c.MinChunk)).
		SetInt("minbuf", page.Int32, c.Minbuf).
		SetInt("avbps", page.Int32, c.Bitrate)
}

// Filename returns the name of the container. Without a parsed CRID page it is derived
// from the primary video with the extension replaced by .usm.
func (u *Usm) Filename() string {
	if u.usmCrid != nil {
		name, _ := u.usmCrid.Str("filename")
		return path.Base(strings.ReplaceAll(name, "\\", "/"))
	}
	name := u.videos[0].Filename()
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name + ".usm"
}

func minbuf(maxPacket int) int64 {
	v := int64(math.RoundToEven(float64(maxPacket) * minbufScale))
	if rem := v % minbufAlign; rem != 0 {
		v += minbufAlign - rem
	}
	return v
}

// CridPage returns the top-level CRID page. A container that was not opened from a file
// needs the size of everything after the info sector and the largest packed chunk.
func (u *Usm) CridPage(sizeAfterCrid int64, maxPacket int) (*page.Page, error) {
	if u.usmCrid != nil {
		return u.usmCrid, nil
	}
	if sizeAfterCrid < 0 {
		return nil, ErrSizeUnknown
	}

	var bitrate int64
	for _, e := range u.elements() {
		avbps, err := e.CridPage().Int("avbps")
		if err != nil {
			return nil, fmt.Errorf("usm: crid of channel %d: %w", e.ChannelNumber(), err)
		}
		bitrate += avbps
	}

	crid := Crid{
		Version:  u.version,
		Filename: u.Filename(),
		Filesize: chunk.SectorSize + sizeAfterCrid,
		Stream:   gousm.StreamUsm,
		Channel:  -1,
		MinChunk: 1,
		Minbuf:   minbuf(maxPacket),
		Bitrate:  bitrate,
	}
	return crid.Page(), nil
}

// elements lists the videos then the audios, the order of the info chunk.
func (u *Usm) elements() []gousm.Element {
	out := make([]gousm.Element, 0, len(u.videos)+len(u.audios))
	for _, v := range u.videos {
		out = append(out, v)
	}
	for _, a := range u.audios {
		out = append(out, a)
	}
	return out
}

// infoChunk builds the leading sector of a container.
func (u *Usm) infoChunk(sizeAfterCrid int64, maxPacket int) (*chunk.Chunk, error) {
	crid, err := u.CridPage(sizeAfterCrid, maxPacket)
	if err != nil {
		return nil, err
	}
	pages := []*page.Page{crid}
	for _, e := range u.elements() {
		pages = append(pages, e.CridPage())
	}

	c := &chunk.Chunk{
		Type:        chunk.Info,
		PayloadType: chunk.Header,
		Pages:       pages,
		Padding:     chunk.Sector(0),
		Encoding:    u.encoding,
	}
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	if n != chunk.SectorSize {
		return nil, fmt.Errorf("%w: %#x bytes", ErrInfoTooLarge, n)
	}
	return c, nil
}
