// Package gousm defines the shared types used by the USM container reader and writer.
package gousm

import (
	"github.com/ugparu/gousm/codec/chunk"
	"github.com/ugparu/gousm/codec/page"
)

// OpMode selects what happens to stream payloads while they pass through a producer.
type OpMode uint8

// Operation modes.
const (
	OpNone    OpMode = iota // Payloads are copied as is.
	OpEncrypt               // Payloads are masked with the element key.
	OpDecrypt               // Payloads are unmasked with the element key.
)

// String returns the human-readable name of the mode.
func (m OpMode) String() string {
	switch m {
	case OpNone:
		return "none"
	case OpEncrypt:
		return "encrypt"
	case OpDecrypt:
		return "decrypt"
	default:
		return "unknown"
	}
}

// PacketSource yields the raw packets of one elementary stream, one packet per frame.
type PacketSource interface {
	Next() (data []byte, keyframe bool, err error) // Returns io.EOF once the stream is exhausted.
	Close() error                                  // Releases resources held by the source.
}

// PacketOpener starts a fresh traversal of an elementary stream.
type PacketOpener func() (PacketSource, error)

// Element is one elementary stream multiplexed in a container.
type Element interface {
	ChannelNumber() int          // Returns the channel the element is multiplexed on.
	Filename() string            // Returns the base name of the elementary stream file.
	CridPage() *page.Page        // Returns the descriptor page of the channel.
	HeaderPage() *page.Page      // Returns the header page of the channel.
	MetadataPages() []*page.Page // Returns pre-supplied metadata pages or nil.
	Len() int                    // Returns the number of frames.
	Packets(mode OpMode, key []byte) (PacketSource, error)
}

// VideoProducer emits the chunks of one video frame per call.
type VideoProducer interface {
	Next() (chunks []*chunk.Chunk, keyframe bool, err error) // Returns io.EOF once exhausted.
	Close() error
}

// AudioProducer emits the chunks of one audio frame per call.
type AudioProducer interface {
	Next() (chunks []*chunk.Chunk, err error) // Returns io.EOF once exhausted.
	Close() error
}

// VideoElement is a video or alpha channel.
type VideoElement interface {
	Element
	IsAlpha() bool
	Producer(mode OpMode, key []byte) (VideoProducer, error)
}

// AudioElement is an audio channel.
type AudioElement interface {
	Element
	Producer(mode OpMode, key []byte) (AudioProducer, error)
}
