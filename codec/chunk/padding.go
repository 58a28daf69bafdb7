package chunk

// Padding computes the number of zero bytes appended after a chunk whose header and
// payload occupy size bytes.
type Padding func(size int) int

// SectorSize is the alignment of the leading info section.
const SectorSize = 0x800

const (
	metadataMinSize = 0xF0
	metadataAlign   = 0x8
)

// Fixed always pads with n bytes.
func Fixed(n int) Padding {
	return func(int) int { return n }
}

// Align pads the chunk to a multiple of n bytes.
func Align(n int) Padding {
	return func(size int) int {
		if rem := size % n; rem != 0 {
			return n - rem
		}
		return 0
	}
}

// Sector pads the chunk so that it ends on a sector boundary when it starts at position.
func Sector(position int) Padding {
	return func(size int) int {
		if rem := (position + size) % SectorSize; rem != 0 {
			return SectorSize - rem
		}
		return 0
	}
}

// MetadataPadding pads small metadata chunks up to 0xF0 bytes and larger ones to a multiple of 8.
func MetadataPadding(size int) int {
	if size <= metadataMinSize {
		return metadataMinSize - size
	}
	return Align(metadataAlign)(size)
}
