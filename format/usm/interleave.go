package usm

import (
	"errors"
	"io"

	"github.com/ugparu/gousm"
	"github.com/ugparu/gousm/codec/chunk"
)

// Keyframe is the position of a key frame in the packed stream.
type Keyframe struct {
	Frame  int
	Offset int64
}

type packResult struct {
	size      int64
	maxPacket int
	keyframes map[int][]Keyframe
}

type activeVideo struct {
	gousm.VideoProducer
	done bool
}

type activeAudio struct {
	gousm.AudioProducer
	done bool
}

// packStream interleaves the chunks of every element into w, one frame index at a time.
// Within a frame all videos come first in element order, then all audios. A producer
// that runs out is dropped and never polled again.
func packStream(
	w io.Writer,
	maxFrame int,
	videos []gousm.VideoElement,
	audios []gousm.AudioElement,
	mode gousm.OpMode,
	videoKey, audioKey []byte,
) (res packResult, err error) {
	vps := make([]*activeVideo, 0, len(videos))
	aps := make([]*activeAudio, 0, len(audios))
	defer func() {
		for _, p := range vps {
			_ = p.Close()
		}
		for _, p := range aps {
			_ = p.Close()
		}
	}()

	for _, v := range videos {
		p, err := v.Producer(mode, videoKey)
		if err != nil {
			return res, err
		}
		vps = append(vps, &activeVideo{VideoProducer: p})
	}
	for _, a := range audios {
		p, err := a.Producer(mode, audioKey)
		if err != nil {
			return res, err
		}
		aps = append(aps, &activeAudio{AudioProducer: p})
	}

	res.maxPacket = 1
	res.keyframes = make(map[int][]Keyframe)
	write := func(chunks []*chunk.Chunk) error {
		for _, c := range chunks {
			b, err := c.Pack()
			if err != nil {
				return err
			}
			res.maxPacket = max(res.maxPacket, len(b))
			n, err := w.Write(b)
			res.size += int64(n)
			if err != nil {
				return err
			}
		}
		return nil
	}

	for index := range maxFrame {
		for _, p := range vps {
			chunks, keyframe, err := p.Next()
			if errors.Is(err, io.EOF) {
				p.done = true
				continue
			} else if err != nil {
				return res, err
			}
			if keyframe && len(chunks) > 0 {
				ch := chunks[0].Channel
				res.keyframes[ch] = append(res.keyframes[ch], Keyframe{Frame: index, Offset: res.size})
			}
			if err = write(chunks); err != nil {
				return res, err
			}
		}

		for _, p := range aps {
			chunks, err := p.Next()
			if errors.Is(err, io.EOF) {
				p.done = true
				continue
			} else if err != nil {
				return res, err
			}
			if err = write(chunks); err != nil {
				return res, err
			}
		}

		vps = retain(vps, func(p *activeVideo) bool { return p.done })
		aps = retain(aps, func(p *activeAudio) bool { return p.done })
	}
	return res, nil
}

// retain closes and removes finished producers, keeping the order of the others.
func retain[T interface {
	Close() error
}](ps []T, done func(T) bool) []T {
	kept := ps[:0]
	for _, p := range ps {
		if done(p) {
			_ = p.Close()
			continue
		}
		kept = append(kept, p)
	}
	clear(ps[len(kept):])
	return kept
}
