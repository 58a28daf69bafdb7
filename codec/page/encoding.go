package page

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is used for page strings when no encoding is given.
const DefaultEncoding = "UTF-8"

// lookupEncoding resolves a WHATWG encoding label such as "utf-8" or "shift_jis".
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" || strings.EqualFold(name, DefaultEncoding) || strings.EqualFold(name, "utf8") {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("page: unknown string encoding %q: %w", name, err)
	}
	return enc, nil
}

// CheckEncoding reports whether name can be used for page strings.
func CheckEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}
