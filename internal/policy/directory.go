package policy

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/freezedry/internal/model"
)

// digestLength is the number of hex digits of the content digest used in
// file names.
const digestLength = 16

// Directory stores subresources as content-addressed files in one flat
// directory.
type Directory struct {
	// Dir is where files are written.
	Dir string

	// Prefix is the path of Dir relative to the root document. Resources
	// nested below the root live in Dir themselves and are referenced by
	// bare file name.
	Prefix string

	mu      sync.Mutex
	written map[string]int
}

// NewDirectory returns a store writing into dir, referenced from the root
// document through prefix.
func NewDirectory(dir, prefix string) *Directory {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Directory{Dir: dir, Prefix: prefix, written: make(map[string]int)}
}

// Store writes data under its content-addressed name unless a file of that
// name was already written, and returns the name.
func (d *Directory) Store(sourceURL, mediaType string, data []byte) (string, error) {
	name := FileName(sourceURL, mediaType, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.written[name]; ok {
		return name, nil
	}
	if err := os.MkdirAll(d.Dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", d.Dir, err)
	}
	if err := os.WriteFile(filepath.Join(d.Dir, name), data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	d.written[name] = len(data)
	return name, nil
}

// Files returns the number of files written and their total size.
func (d *Directory) Files() (count int, bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.written {
		count++
		bytes += int64(n)
	}
	return count, bytes
}

// FileName is the content-addressed name of data: a digest prefix and an
// extension taken from the media type, or from the URL path when the type
// is unknown.
func FileName(sourceURL, mediaType string, data []byte) string {
	return model.Digest(data)[:digestLength] + extension(sourceURL, mediaType)
}

// knownExtensions fixes the extension of common types, where the mime
// package would pick an unusual one.
var knownExtensions = map[string]string{
	"text/html":     ".html",
	"text/css":      ".css",
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/x-icon":  ".ico",
	"font/woff":     ".woff",
	"font/woff2":    ".woff2",
	"font/ttf":      ".ttf",
	"font/otf":      ".otf",
	"audio/mpeg":    ".mp3",
	"video/mp4":     ".mp4",
	"video/webm":    ".webm",
}

func extension(sourceURL, mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err == nil {
		if ext, ok := knownExtensions[mt]; ok {
			return ext
		}
	}
	if u, err := url.Parse(sourceURL); err == nil && u.Scheme != "data" {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 6 && !strings.ContainsAny(ext, "/\\") {
			return strings.ToLower(ext)
		}
	}
	if err == nil {
		if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
			return exts[0]
		}
	}
	return ".bin"
}

// SiblingDirectory returns the store for a document written to
// documentPath: "page.html" keeps its files in "page_files/".
func SiblingDirectory(documentPath string) *Directory {
	base := filepath.Base(documentPath)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "_files"
	return NewDirectory(filepath.Join(filepath.Dir(documentPath), name), name)
}
