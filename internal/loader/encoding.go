package loader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var ErrDecode = errors.New("failed to decode source")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw source bytes to UTF-8.
//
// "auto" (or empty) keeps valid UTF-8 as is and otherwise decodes as
// Windows-1252, which covers the Latin-1 exports most public CSV datasets
// ship as. A leading UTF-8 BOM is removed.
func Decode(raw []byte, enc string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "auto":
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if utf8.Valid(raw) {
			return raw, nil
		}
		return decodeWith(charmap.Windows1252, raw)
	case "utf-8", "utf8":
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid utf-8", ErrDecode)
		}
		return raw, nil
	case "latin-1", "latin1", "iso-8859-1":
		return decodeWith(charmap.ISO8859_1, raw)
	case "windows-1252", "cp1252":
		return decodeWith(charmap.Windows1252, raw)
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrDecode, enc)
	}
}

func decodeWith(e encoding.Encoding, raw []byte) ([]byte, error) {
	out, err := e.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return out, nil
}
