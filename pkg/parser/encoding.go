package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding is the character encoding of a log file.
type Encoding string

// Supported encodings. PostgreSQL writes its log in the server encoding, so
// LATIN1 clusters produce Latin-1 logs.
const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingLatin1      Encoding = "latin1"
	EncodingWindows1252 Encoding = "windows-1252"
)

// ParseEncoding resolves an encoding name, accepting common aliases.
// The empty string means UTF-8.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	case "windows-1252", "win1252", "cp1252":
		return EncodingWindows1252, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q (use utf-8, latin1 or windows-1252)", name)
	}
}

// Reader wraps r so that it yields UTF-8.
func (e Encoding) Reader(r io.Reader) io.Reader {
	switch e {
	case EncodingLatin1:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	case EncodingWindows1252:
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		return r
	}
}

// validates reports whether lines read with e need a UTF-8 check. Decoded
// single-byte encodings always produce valid UTF-8.
func (e Encoding) validates() bool {
	return e == EncodingUTF8 || e == ""
}
