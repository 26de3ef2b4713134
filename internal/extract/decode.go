package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

type textEncoding struct {
	name    string
	charset encoding.Encoding // nil means UTF-8
}

// Order matters: the first clean decode wins.
var textEncodings = []textEncoding{
	{name: "utf-8"},
	{name: "latin-1", charset: charmap.ISO8859_1},
	{name: "cp1252", charset: charmap.Windows1252},
	{name: "iso-8859-1", charset: charmap.ISO8859_1},
}

// decodeText never fails: when no encoding yields clean text the bytes are
// read as UTF-8 with invalid sequences replaced.
func decodeText(data []byte) string {
	for _, enc := range textEncodings {
		text, ok := tryDecode(data, enc)
		if !ok {
			continue
		}
		if strings.TrimSpace(text) != "" && !strings.ContainsAny(text, "\uFFFD\x00") {
			return text
		}
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

func tryDecode(data []byte, enc textEncoding) (string, bool) {
	if enc.charset == nil {
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}
	out, err := enc.charset.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}
