// internal/converter/converter.go

package converter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/rmitchellscott/binder/internal/layout"
)

const (
	// maxImageDimension and maxImagePixels bound decoder allocations for
	// images that lie about their size.
	maxImageDimension       = 32768
	maxImagePixels    int64 = 64 * 1024 * 1024
)

var (
	ErrInvalidImage = errors.New("invalid image")
	ErrImageTooBig  = errors.New("image dimensions exceed limit")
)

// Options controls how images are placed and encoded.
type Options struct {
	Page        layout.PageSize
	Margin      float64
	Upscale     bool
	DPI         float64
	JPEGQuality int
}

// DefaultOptions mirrors the service defaults: A4, no margin, 150 DPI, q90.
func DefaultOptions() Options {
	return Options{
		Page:        layout.A4,
		Upscale:     true,
		DPI:         150,
		JPEGQuality: 90,
	}
}

// Format selects how a page image is embedded in the PDF.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
)

// Page is one image destined for its own PDF page. SourceDPI converts its
// pixels to points; zero means one pixel per point.
type Page struct {
	Image     image.Image
	SourceDPI float64
	Format    Format
}

// DecodeImage decodes data with EXIF orientation applied.
func DecodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := checkBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func checkBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: bounds %dx%d", ErrInvalidImage, width, height)
	}
	if width > maxImageDimension || height > maxImageDimension {
		return fmt.Errorf("%w: %dx%d", ErrImageTooBig, width, height)
	}
	if int64(width)*int64(height) > maxImagePixels {
		return fmt.Errorf("%w: %d pixels", ErrImageTooBig, int64(width)*int64(height))
	}
	return nil
}

// ImageToPDF converts one encoded image into a single-page PDF. PNG input
// stays PNG; every other format is re-encoded as JPEG.
func ImageToPDF(data []byte, mime string, opts Options) ([]byte, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	format := FormatJPEG
	if mime == "image/png" {
		format = FormatPNG
	}
	return PagesToPDF([]Page{{Image: img, Format: format}}, opts)
}

// ImagesToPDF renders each image on its own page. Used for rasterized PDF
// pages, which carry sourceDPI so their natural size is preserved.
func ImagesToPDF(images []image.Image, sourceDPI float64, opts Options) ([]byte, error) {
	pages := make([]Page, len(images))
	for i, img := range images {
		pages[i] = Page{Image: img, SourceDPI: sourceDPI}
	}
	return PagesToPDF(pages, opts)
}

// PagesToPDF lays out each page with layout.Fit and writes the document.
func PagesToPDF(pages []Page, opts Options) ([]byte, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages to render")
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "A4",
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	for i, p := range pages {
		if p.Image == nil {
			return nil, fmt.Errorf("%w: page %d is empty", ErrInvalidImage, i+1)
		}
		b := p.Image.Bounds()
		natW, natH := float64(b.Dx()), float64(b.Dy())
		if p.SourceDPI > 0 {
			natW = natW * 72 / p.SourceDPI
			natH = natH * 72 / p.SourceDPI
		}
		place := layout.Fit(natW, natH, opts.Page, opts.Margin, opts.Upscale)

		encoded, imageType, err := prepare(p, place, opts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("img%d", i)
		imgOpts := fpdf.ImageOptions{ImageType: imageType}
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: place.PageWidth, Ht: place.PageHeight})
		pdf.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(encoded))
		pdf.ImageOptions(name, place.X, place.Y, place.Width, place.Height, false, imgOpts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// prepare downsamples p to the pixel box of its placement (never upsampling),
// flattens it onto white and encodes it.
func prepare(p Page, place layout.Placement, opts Options) ([]byte, string, error) {
	img := p.Image
	boxW, boxH := layout.PixelBox(place, opts.DPI)
	b := img.Bounds()
	if b.Dx() > boxW || b.Dy() > boxH {
		img = imaging.Fit(img, boxW, boxH, imaging.Lanczos)
	}

	b = img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := encode(&buf, flat, p.Format, opts.JPEGQuality); err != nil {
		return nil, "", err
	}
	if p.Format == FormatPNG {
		return buf.Bytes(), "PNG", nil
	}
	return buf.Bytes(), "JPG", nil
}

func encode(w io.Writer, img image.Image, format Format, quality int) error {
	if format == FormatPNG {
		return imaging.Encode(w, img, imaging.PNG)
	}
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}
