package usm

import (
	"github.com/ugparu/gousm/codec/page"
)

// DefaultVersion is the format version written into new containers.
const DefaultVersion uint32 = 16777984

type options struct {
	key      *uint64
	encoding string
	lenient  *bool
	version  uint32
	usmCrid  *page.Page
}

func newOptions(opts []Option) options {
	o := options{
		encoding: page.DefaultEncoding,
		version:  DefaultVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures how a container is opened or built.
type Option func(*options)

// WithKey derives the video and audio keys from seed.
func WithKey(seed uint64) Option {
	return func(o *options) {
		o.key = &seed
	}
}

// WithEncoding sets the character encoding of page strings.
func WithEncoding(name string) Option {
	return func(o *options) {
		o.encoding = name
	}
}

// WithLenient makes the parser skip chunks it cannot decode instead of failing.
// When unset, parsing is lenient while debug logging is enabled.
func WithLenient(lenient bool) Option {
	return func(o *options) {
		o.lenient = &lenient
	}
}

// WithVersion sets the format version of a new container.
func WithVersion(version uint32) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithUsmCrid reuses an existing top-level CRID page instead of building one.
func WithUsmCrid(p *page.Page) Option {
	return func(o *options) {
		o.usmCrid = p
	}
}
