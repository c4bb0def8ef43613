// Package layout computes where an image lands on an output page.
// All dimensions are PDF points; image pixels map 1:1 to points at their
// natural size.
package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PageSize is a page in points. A zero PageSize with Image set means the
// page takes the size of whatever is placed on it.
type PageSize struct {
	Width  float64
	Height float64
	Image  bool
}

func (p PageSize) String() string {
	if p.Image {
		return "image"
	}
	return fmt.Sprintf("%gx%g", p.Width, p.Height)
}

// A4 is the default output page.
var A4 = PageSize{Width: 595, Height: 842}

// ParsePageSize accepts a pdfcpu paper name (case-insensitive, optional "L"
// suffix for landscape), "WIDTHxHEIGHT" in points, or "image".
func ParsePageSize(s string) (PageSize, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return A4, nil
	}
	if strings.EqualFold(raw, "image") {
		return PageSize{Image: true}, nil
	}

	if w, h, ok := strings.Cut(strings.ToLower(raw), "x"); ok {
		width, errW := strconv.ParseFloat(w, 64)
		height, errH := strconv.ParseFloat(h, 64)
		if errW == nil && errH == nil {
			if width <= 0 || height <= 0 || math.IsInf(width, 0) || math.IsInf(height, 0) {
				return PageSize{}, fmt.Errorf("page size %q must be positive", raw)
			}
			return PageSize{Width: width, Height: height}, nil
		}
	}

	if d, ok := paper(raw); ok {
		return PageSize{Width: d.Width, Height: d.Height}, nil
	}
	if len(raw) > 1 && (raw[len(raw)-1] == 'L' || raw[len(raw)-1] == 'l') {
		if d, ok := paper(raw[:len(raw)-1]); ok {
			return PageSize{Width: d.Height, Height: d.Width}, nil
		}
	}
	return PageSize{}, fmt.Errorf("unknown page size %q", raw)
}

func paper(name string) (*types.Dim, bool) {
	if d, ok := types.PaperSize[name]; ok && d != nil {
		return d, true
	}
	for k, d := range types.PaperSize {
		if strings.EqualFold(k, name) && d != nil {
			return d, true
		}
	}
	return nil, false
}

// Placement is the resolved page and the image rectangle on it.
// X and Y are measured from the top-left corner.
type Placement struct {
	PageWidth  float64
	PageHeight float64
	X, Y       float64
	Width      float64
	Height     float64
}

// Fit places an imgW x imgH image on page inside margin. The image is scaled
// to the content width; if that overflows the content height it is scaled to
// the content height instead. Aspect ratio is preserved and the result is
// centered. Without upscale, images already inside the box keep their
// natural size.
func Fit(imgW, imgH float64, page PageSize, margin float64, upscale bool) Placement {
	if margin < 0 {
		margin = 0
	}
	if imgW <= 0 || imgH <= 0 {
		imgW, imgH = 1, 1
	}

	if page.Image {
		return Placement{
			PageWidth:  imgW + 2*margin,
			PageHeight: imgH + 2*margin,
			X:          margin,
			Y:          margin,
			Width:      imgW,
			Height:     imgH,
		}
	}

	contentW := page.Width - 2*margin
	contentH := page.Height - 2*margin
	if contentW <= 0 || contentH <= 0 {
		contentW, contentH = page.Width, page.Height
	}

	scale := contentW / imgW
	if imgH*scale > contentH {
		scale = contentH / imgH
	}
	if !upscale && scale > 1 {
		scale = 1
	}

	w := imgW * scale
	h := imgH * scale
	return Placement{
		PageWidth:  page.Width,
		PageHeight: page.Height,
		X:          (page.Width - w) / 2,
		Y:          (page.Height - h) / 2,
		Width:      w,
		Height:     h,
	}
}

// PixelBox is the pixel size an image needs to fill p at dpi.
func PixelBox(p Placement, dpi float64) (int, int) {
	if dpi <= 0 {
		dpi = 72
	}
	w := int(math.Round(p.Width * dpi / 72))
	h := int(math.Round(p.Height * dpi / 72))
	return max(w, 1), max(h, 1)
}
