package usm

import (
	"maps"
	"slices"

	"github.com/ugparu/gousm/codec/page"
)

type byteRange struct {
	offset int64
	size   int
}

// channel collects what the parser finds for one (kind, channel number) pair.
type channel struct {
	stream   []byteRange
	header   *page.Page
	metadata []*page.Page
}

type channels map[int]*channel

func (cs channels) get(number int) *channel {
	ch, ok := cs[number]
	if !ok {
		ch = &channel{header: page.New("")}
		cs[number] = ch
	}
	return ch
}

func (cs channels) numbers() []int {
	return slices.Sorted(maps.Keys(cs))
}
