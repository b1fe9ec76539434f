// Package markup turns raw request bodies into label markup text.
package markup

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used when no charset is configured.
const DefaultCharset = "utf-8"

var charsets = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8BOM,
	"utf8":         unicode.UTF8BOM,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
}

// Decoder converts bodies in one fixed charset. It is safe for concurrent use.
type Decoder struct {
	charset string
	enc     encoding.Encoding
}

// NewDecoder returns a decoder for the named charset.
func NewDecoder(charset string) (*Decoder, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" {
		name = DefaultCharset
	}
	enc, ok := charsets[name]
	if !ok {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return &Decoder{charset: name, enc: enc}, nil
}

// Supported reports whether charset names a known encoding.
func Supported(charset string) bool {
	_, err := NewDecoder(charset)
	return err == nil
}

// Charset returns the normalised charset name.
func (d *Decoder) Charset() string { return d.charset }

// Decode never fails: invalid sequences become U+FFFD and a leading UTF-8
// byte order mark is dropped.
func (d *Decoder) Decode(body []byte) string {
	out, err := d.enc.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	return string(out)
}
