// Package pdfprocessor provides PDF manipulation utilities
package pdfprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrInvalidPDF       = errors.New("invalid PDF")
	ErrInvalidSelection = errors.New("invalid page selection")
	ErrEmptyDocument    = errors.New("output document has no pages")
)

// Config returns the pdfcpu configuration used for every operation.
// Relaxed validation accepts the slightly broken files scanners produce.
func Config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount reads data and returns its number of pages.
func PageCount(data []byte) (int, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), Config())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read PDF context: %v", ErrInvalidPDF, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("%w: failed to ensure page count: %v", ErrInvalidPDF, err)
	}
	if ctx.PageCount == 0 {
		return 0, fmt.Errorf("%w: document has no pages", ErrInvalidPDF)
	}
	return ctx.PageCount, nil
}

// CopyPages returns a new document holding only the selected pages of data,
// in document order, along with its page count. selection uses pdfcpu page
// syntax ("1-3", "5", "!2", "odd"). An empty selection keeps every page and
// returns data unchanged.
func CopyPages(data []byte, selection []string) ([]byte, int, error) {
	n, err := PageCount(data)
	if err != nil {
		return nil, 0, err
	}
	selection = cleanSelection(selection)
	if len(selection) == 0 {
		return data, n, nil
	}

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, selection, Config()); err != nil {
		return nil, 0, fmt.Errorf("%w %q: %v", ErrInvalidSelection, strings.Join(selection, ","), err)
	}
	out := buf.Bytes()
	count, err := PageCount(out)
	if err != nil {
		return nil, 0, fmt.Errorf("%w %q: no pages selected", ErrInvalidSelection, strings.Join(selection, ","))
	}
	return out, count, nil
}

// ParseSelection splits a comma separated selection string.
func ParseSelection(s string) []string {
	return cleanSelection(strings.Split(s, ","))
}

func cleanSelection(sel []string) []string {
	out := sel[:0:0]
	for _, s := range sel {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Assembler accumulates single-part PDFs in upload order and concatenates
// them into the output document.
type Assembler struct {
	parts [][]byte
	pages int
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Add appends part, which contributes pages pages to the output.
func (a *Assembler) Add(part []byte, pages int) {
	a.parts = append(a.parts, part)
	a.pages += pages
}

// Len is the number of parts added so far.
func (a *Assembler) Len() int { return len(a.parts) }

// Pages is the total page count of the output document.
func (a *Assembler) Pages() int { return a.pages }

// Write serializes the output document to w. A single part is written
// as-is.
func (a *Assembler) Write(w io.Writer) error {
	switch len(a.parts) {
	case 0:
		return ErrEmptyDocument
	case 1:
		_, err := w.Write(a.parts[0])
		return err
	}

	readers := make([]io.ReadSeeker, len(a.parts))
	for i, p := range a.parts {
		readers[i] = bytes.NewReader(p)
	}
	if err := api.MergeRaw(readers, w, false, Config()); err != nil {
		return fmt.Errorf("failed to merge %d parts: %w", len(a.parts), err)
	}
	return nil
}

// Bytes is Write into a buffer.
func (a *Assembler) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
