package batch

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"
)

// zip general purpose flag bit 11: name and comment are UTF-8.
const flagUTF8 = 0x800

// DefaultSuffix is appended to output file stems when none is configured.
const DefaultSuffix = "_trimmed"

// OutputName inserts suffix between the stem and the extension of name,
// keeping any directory part: "rides/a.gpx" -> "rides/a_trimmed.gpx".
func OutputName(name, suffix string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + suffix + ext
}

// entryName returns the display name of an archive entry. Names flagged as
// UTF-8, or that happen to be valid UTF-8, are kept; anything else was
// written by a tool using a legacy code page and is read as ISO-8859-1.
func entryName(f *zip.File) (string, error) {
	name := f.Name
	if utf8.ValidString(name) {
		return name, nil
	}
	if f.Flags&flagUTF8 != 0 {
		return strings.ToValidUTF8(name, "\uFFFD"), fmt.Errorf("%w: %q flagged UTF-8 but is not", ErrMalformedEncoding, name)
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().String(name)
	if err != nil {
		return strings.ToValidUTF8(name, "\uFFFD"), fmt.Errorf("%w: %q: %w", ErrMalformedEncoding, name, err)
	}
	return decoded, nil
}

// eligible reports whether an archive entry is a track file worth trimming.
// macOS resource forks (._name) and __MACOSX/ folders are skipped.
func eligible(name string) bool {
	if !strings.EqualFold(path.Ext(name), ".gpx") {
		return false
	}
	if strings.HasPrefix(path.Base(name), "._") {
		return false
	}
	return !strings.HasPrefix(name, "__MACOSX/") && !strings.Contains(name, "/__MACOSX/")
}
