package converter

import (
	"context"
	"fmt"
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

// RasterizePDF renders every page of data at dpi. The context is checked
// between pages.
func RasterizePDF(ctx context.Context, data []byte, dpi float64) ([]image.Image, error) {
	if dpi <= 0 {
		dpi = 150
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rasterizing: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
