package page

// Seek-info page fields.
const (
	SeekInfoName   = "VIDEO_SEEKINFO"
	SeekOffsetKey  = "ofs_byte"
	SeekFrameKey   = "ofs_frmid"
	seekSkipKey    = "num_skip"
	seekReserveKey = "resv"
)

// NewSeekInfo creates a VIDEO_SEEKINFO page pointing at a keyframe.
func NewSeekInfo(offset int64, frame uint32) *Page {
	p := New(SeekInfoName)
	p.SetInt(SeekOffsetKey, Int64, offset)
	p.SetUint(SeekFrameKey, Uint32, uint64(frame))
	p.SetUint(seekSkipKey, Uint16, 0)
	p.SetUint(seekReserveKey, Uint16, 0)
	return p
}

// Keyframes returns the frame indices referenced by seek-info pages.
// Pages without a frame index are ignored.
func Keyframes(pages []*Page) []int {
	if pages == nil {
		return nil
	}
	frames := make([]int, 0, len(pages))
	for _, p := range pages {
		if f, ok := p.Get(SeekFrameKey); ok {
			frames = append(frames, int(f.Int()))
		}
	}
	return frames
}
