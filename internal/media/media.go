// Package media classifies uploaded payloads by their content and enforces
// upload limits.
package media

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindPDF
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

var (
	ErrNoFiles         = errors.New("no files uploaded")
	ErrTooManyFiles    = errors.New("too many files")
	ErrTooLarge        = errors.New("file too large")
	ErrNameTooLong     = errors.New("filename too long")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

// imageTypes is the image allowlist. Anything decodable by the converter
// belongs here and nothing else.
var imageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

const pdfType = "application/pdf"

// Detect sniffs data and reports its media type and kind. Declared
// Content-Type headers and file extensions are never consulted.
func Detect(data []byte) (string, Kind) {
	mt := mimetype.Detect(data)
	if mt.Is(pdfType) {
		return pdfType, KindPDF
	}
	for _, t := range imageTypes {
		if mt.Is(t) {
			return t, KindImage
		}
	}
	return mt.String(), KindUnsupported
}

// Allowed returns the accepted media types, images first.
func Allowed() []string {
	out := make([]string, 0, len(imageTypes)+1)
	out = append(out, imageTypes...)
	return append(out, pdfType)
}

// Limits bounds a single upload request.
type Limits struct {
	MaxFiles          int
	MaxFileSize       int64
	MaxFilenameLength int
}

// CheckCount validates the number of files in a request.
func (l Limits) CheckCount(n int) error {
	if n == 0 {
		return ErrNoFiles
	}
	if l.MaxFiles > 0 && n > l.MaxFiles {
		return fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, n, l.MaxFiles)
	}
	return nil
}

// Check validates one file's name and size before its contents are read.
func (l Limits) Check(name string, size int64) error {
	if l.MaxFilenameLength > 0 && len(name) > l.MaxFilenameLength {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrNameTooLong, len(name), l.MaxFilenameLength)
	}
	if size == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if l.MaxFileSize > 0 && size > l.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, name, size, l.MaxFileSize)
	}
	return nil
}
