// Package binder turns an ordered list of uploaded images and PDFs into a
// single output document.
package binder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rmitchellscott/binder/internal/compressor"
	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/converter"
	"github.com/rmitchellscott/binder/internal/layout"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/media"
	"github.com/rmitchellscott/binder/internal/pdfprocessor"
)

// Input is one uploaded file.
type Input struct {
	Name string
	Data []byte
}

// Options controls page layout and PDF handling for a merge.
type Options struct {
	PageSize    layout.PageSize
	Margin      float64
	Upscale     bool
	ImageDPI    float64
	JPEGQuality int
	PDFMode     string
	RasterDPI   float64
	// Pages is a pdfcpu page selection applied to every PDF input.
	Pages    []string
	Optimize bool
}

// OptionsFromSettings builds the default Options for a request.
func OptionsFromSettings(s config.Settings) (Options, error) {
	page, err := layout.ParsePageSize(s.PageSize)
	if err != nil {
		return Options{}, err
	}
	return Options{
		PageSize:    page,
		Margin:      s.PageMargin,
		Upscale:     s.PageUpscale,
		ImageDPI:    s.ImageDPI,
		JPEGQuality: s.JPEGQuality,
		PDFMode:     s.PDFMode,
		RasterDPI:   s.RasterDPI,
		Optimize:    s.OptimizeOutput,
	}, nil
}

func (o Options) converterOptions() converter.Options {
	return converter.Options{
		Page:        o.PageSize,
		Margin:      o.Margin,
		Upscale:     o.Upscale,
		DPI:         o.ImageDPI,
		JPEGQuality: o.JPEGQuality,
	}
}

// Result is the output document.
type Result struct {
	PDF    []byte
	Pages  int
	Inputs int
}

// InputError identifies which input failed.
type InputError struct {
	Index int
	Name  string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s (file %d): %v", e.Name, e.Index+1, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ProgressFunc is called after each input is processed.
type ProgressFunc func(done, total int)

// Bind converts inputs in order and concatenates them. Images become one
// page each; PDFs contribute their selected pages, or are rasterized when
// PDFMode is rasterize. The first failing input aborts the merge.
func Bind(ctx context.Context, inputs []Input, opts Options, progress ProgressFunc) (*Result, error) {
	if len(inputs) == 0 {
		return nil, media.ErrNoFiles
	}
	start := time.Now()
	asm := pdfprocessor.NewAssembler()

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, pages, err := convert(ctx, in, opts)
		if err != nil {
			return nil, &InputError{Index: i, Name: in.Name, Err: err}
		}
		asm.Add(part, pages)
		if progress != nil {
			progress(i+1, len(inputs))
		}
	}

	out, err := asm.Bytes()
	if err != nil {
		return nil, err
	}
	if opts.Optimize {
		if out, err = compressor.Optimize(ctx, out); err != nil {
			return nil, err
		}
	}

	logging.Logf("[MERGE] %d inputs -> %d pages, %d bytes in %s", len(inputs), asm.Pages(), len(out), time.Since(start).Round(time.Millisecond))
	return &Result{PDF: out, Pages: asm.Pages(), Inputs: len(inputs)}, nil
}

func convert(ctx context.Context, in Input, opts Options) ([]byte, int, error) {
	mime, kind := media.Detect(in.Data)
	switch kind {
	case media.KindImage:
		logging.Debugf("[MERGE] %s: %s image", in.Name, mime)
		part, err := converter.ImageToPDF(in.Data, mime, opts.converterOptions())
		return part, 1, err

	case media.KindPDF:
		part, pages, err := pdfprocessor.CopyPages(in.Data, opts.Pages)
		if err != nil {
			return nil, 0, err
		}
		if opts.PDFMode != config.PDFModeRasterize {
			logging.Debugf("[MERGE] %s: copied %d pages", in.Name, pages)
			return part, pages, nil
		}
		images, err := converter.RasterizePDF(ctx, part, opts.RasterDPI)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, errors.Join(pdfprocessor.ErrInvalidPDF, err)
		}
		raster, err := converter.ImagesToPDF(images, opts.RasterDPI, opts.converterOptions())
		if err != nil {
			return nil, 0, err
		}
		logging.Debugf("[MERGE] %s: rasterized %d pages", in.Name, len(images))
		return raster, len(images), nil

	default:
		return nil, 0, fmt.Errorf("%w: %s", media.ErrUnsupportedType, mime)
	}
}
