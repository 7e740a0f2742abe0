package v086

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Charset converts protocol strings between Go strings and the legacy
// encoding clients use on the wire.
type Charset struct {
	name string
	enc  encoding.Encoding
}

var (
	ShiftJIS    = Charset{name: "shift_jis", enc: japanese.ShiftJIS}
	Windows1252 = Charset{name: "windows-1252", enc: charmap.Windows1252}
	UTF8        = Charset{name: "utf-8", enc: unicode.UTF8}
)

func LookupCharset(name string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "shift_jis", "shift-jis", "sjis":
		return ShiftJIS, nil
	case "windows-1252", "cp1252", "latin1":
		return Windows1252, nil
	case "utf-8", "utf8":
		return UTF8, nil
	}
	return Charset{}, fmt.Errorf("%w: %s", ErrUnknownCharset, name)
}

func (c Charset) Name() string { return c.name }

func (c Charset) encoding() encoding.Encoding {
	if c.enc == nil {
		return japanese.ShiftJIS
	}
	return c.enc
}

// Encode never fails: runes the charset cannot represent are replaced.
func (c Charset) Encode(s string) []byte {
	b, err := encoding.ReplaceUnsupported(c.encoding().NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}

func (c Charset) Decode(b []byte) string {
	out, err := c.encoding().NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
