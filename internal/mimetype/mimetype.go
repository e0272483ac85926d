// Package mimetype identifies document content and maps between mimetypes
// and file extensions.
//
// Detection sniffs the leading bytes. net/http's sniffer covers PDF, the
// common image formats and text; TIFF and the legacy Office compound
// document format are recognised here by their magic numbers because the
// standard sniffer reports them as application/octet-stream.
package mimetype

import (
	"bytes"
	"net/http"
	"strings"
)

const (
	PDF   = "application/pdf"
	TIFF  = "image/tiff"
	JPEG  = "image/jpeg"
	GIF   = "image/gif"
	PNG   = "image/png"
	Text  = "text/plain"
	C     = "text/x-c"
	CPP   = "text/x-c++"
	Word  = "application/msword"
	Excel = "application/vnd.ms-excel"
	Zip   = "application/zip"
	Gzip  = "application/x-gzip"
	Octet = "application/octet-stream"
)

var (
	tiffLE = []byte("II*\x00")
	tiffBE = []byte("MM\x00*")
	ole    = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// extensions maps a lower-case extension to its mimetype. The first
// extension listed for a mimetype is its canonical one.
var extensions = []struct {
	ext  string
	mime string
}{
	{"pdf", PDF},
	{"tif", TIFF},
	{"tiff", TIFF},
	{"jpg", JPEG},
	{"jpeg", JPEG},
	{"gif", GIF},
	{"png", PNG},
	{"txt", Text},
	{"c", C},
	{"h", C},
	{"cpp", CPP},
	{"doc", Word},
	{"xls", Excel},
	{"zip", Zip},
	{"gz", Gzip},
}

// Detect returns the mimetype of data, without parameters.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, tiffLE), bytes.HasPrefix(data, tiffBE):
		return TIFF
	case bytes.HasPrefix(data, ole):
		// Word and Excel share the compound document container; without
		// parsing the directory the best guess is Word.
		return Word
	}
	return Base(http.DetectContentType(data))
}

// DetectNamed refines Detect with the filename extension where sniffing
// alone cannot tell formats apart: compound documents and plain text
// variants such as C sources.
func DetectNamed(data []byte, ext string) string {
	m := Detect(data)
	byExt := FromExtension(ext)
	switch {
	case m == Word && byExt == Excel:
		return Excel
	case m == Text && (byExt == C || byExt == CPP):
		return byExt
	}
	return m
}

// Base strips parameters such as "; charset=utf-8".
func Base(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(strings.ToLower(m))
}

// FromExtension returns the mimetype for an extension, with or without the
// leading dot, or "" when unknown.
func FromExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range extensions {
		if e.ext == ext {
			return e.mime
		}
	}
	return ""
}

// Extension returns the canonical extension for a mimetype, or "".
func Extension(m string) string {
	m = Base(m)
	for _, e := range extensions {
		if e.mime == m {
			return e.ext
		}
	}
	return ""
}

// Resolve accepts either a mimetype or an extension and returns the
// mimetype. Configuration lists allowed types in whichever form is handier.
func Resolve(s string) string {
	if strings.Contains(s, "/") {
		return Base(s)
	}
	return FromExtension(s)
}

// IsImage reports whether m is a raster image type.
func IsImage(m string) bool {
	return strings.HasPrefix(Base(m), "image/")
}
