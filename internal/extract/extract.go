// Package extract turns uploaded files into plain text for chunking.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for file extensions no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor converts raw file bytes into plain text.
type Extractor interface {
	// Extract returns the text content of the file. The filename is used to
	// pick the decoding strategy by extension.
	Extract(filename string, data []byte) (string, error)
	// Supports reports whether the extension (without the dot, lowercase)
	// can be extracted.
	Supports(extension string) bool
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// PlainText extracts txt and md files. Content must be valid UTF-8.
type PlainText struct{}

// NewPlainText returns an extractor for plain-text formats.
func NewPlainText() *PlainText {
	return &PlainText{}
}

var plainTextExtensions = map[string]bool{
	"txt":      true,
	"md":       true,
	"markdown": true,
}

func (e *PlainText) Supports(extension string) bool {
	return plainTextExtensions[extension]
}

func (e *PlainText) Extract(filename string, data []byte) (string, error) {
	ext := Extension(filename)
	if !e.Supports(ext) {
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %q is not valid UTF-8 text", filename)
	}
	// Strip a UTF-8 BOM if present and normalize line endings.
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return text, nil
}
