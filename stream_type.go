package gousm

// StreamType is the stream identifier stored in the stmid field of a CRID page.
type StreamType uint32

// Stream identifiers. The container page carries StreamUsm.
const (
	StreamUsm      StreamType = 0
	StreamVideo    StreamType = 0x40534656 // @SFV
	StreamAudio    StreamType = 0x40534641 // @SFA
	StreamAlpha    StreamType = 0x40414C50 // @ALP
	StreamSubtitle StreamType = 0x40534254 // @SBT
)

// String returns the human-readable string representation of a StreamType.
func (st StreamType) String() string {
	switch st {
	case StreamUsm:
		return "USM"
	case StreamVideo:
		return "VIDEO"
	case StreamAudio:
		return "AUDIO"
	case StreamAlpha:
		return "ALPHA"
	case StreamSubtitle:
		return "SUBTITLE"
	default:
		return "UNKNOWN"
	}
}

// IsVideo reports whether the stream carries picture data.
func (st StreamType) IsVideo() bool {
	return st == StreamVideo || st == StreamAlpha
}
