package sgf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var charsetPattern = regexp.MustCompile(`CA\[(.*?)\]`)

// ParseFile reads a record from disk and dispatches on the extension: .ngf, .gib or the
// bracketed format for anything else.
func ParseFile(path string) (*Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseBytes(raw, filepath.Ext(path))
}

// ParseBytes decodes raw record bytes and parses them in the format named by ext (".sgf", ".ngf", ".gib").
func ParseBytes(raw []byte, ext string) (*Node, error) {
	ext = strings.ToLower(ext)
	decoded := decodeRecord(raw, ext != ".sgf" && ext != "")
	switch ext {
	case ".ngf":
		return ParseNGF(decoded)
	case ".gib":
		return ParseGIB(decoded)
	default:
		return Parse(decoded)
	}
}

// decodeRecord picks the charset: utf-8 for line formats and Fox records, the CA property
// when present, else utf-8 if the bytes are valid and GBK otherwise.
func decodeRecord(raw []byte, lineFormat bool) string {
	if lineFormat || bytes.Contains(raw, []byte("AP[foxwq]")) {
		return strings.ToValidUTF8(string(raw), "")
	}
	var enc encoding.Encoding
	if m := charsetPattern.FindSubmatch(raw); m != nil {
		if e, err := htmlindex.Get(strings.TrimSpace(string(m[1]))); err == nil {
			enc = e
		}
	}
	if enc == nil {
		if utf8.Valid(raw) {
			return string(raw)
		}
		enc = simplifiedchinese.GBK
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return string(out)
}
