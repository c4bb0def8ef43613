package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rmitchellscott/binder/internal/binder"
	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/layout"
	"github.com/rmitchellscott/binder/internal/pdfprocessor"
	"github.com/rmitchellscott/binder/internal/security"
)

const defaultFilename = "output.pdf"

// Request holds the optional merge parameters. Multipart uploads bind the
// form tags; JSON uploads bind the json tags.
type Request struct {
	URLs     []string `form:"urls" json:"urls" binding:"omitempty,max=25,dive,required,url,max=2048"`
	Pages    string   `form:"pages" json:"pages" binding:"omitempty,max=200"`
	Optimize *bool    `form:"optimize" json:"optimize"`
	Filename string   `form:"filename" json:"filename" binding:"omitempty,max=255"`
	PageSize string   `form:"page_size" json:"page_size" binding:"omitempty,max=32"`
	Margin   *float64 `form:"margin" json:"margin" binding:"omitempty,gte=0,lte=720"`
	Upscale  *bool    `form:"upscale" json:"upscale"`
	PDFMode  string   `form:"pdf_mode" json:"pdf_mode" binding:"omitempty,oneof=copy rasterize"`
}

// JSONFile is one data-URL encoded input.
type JSONFile struct {
	Name string `json:"name" binding:"max=1024"`
	Data string `json:"data" binding:"required"`
}

// JSONRequest is the body of POST /api/merge/json.
type JSONRequest struct {
	Request
	Files []JSONFile `json:"files" binding:"omitempty,dive"`
}

// fields returns the non-empty parameters for logging.
func (r Request) fields() map[string]string {
	f := map[string]string{}
	if len(r.URLs) > 0 {
		f["urls"] = strings.Join(r.URLs, " ")
	}
	if r.Pages != "" {
		f["pages"] = r.Pages
	}
	if r.Optimize != nil {
		f["optimize"] = fmt.Sprint(*r.Optimize)
	}
	if r.Filename != "" {
		f["filename"] = r.Filename
	}
	if r.PageSize != "" {
		f["page_size"] = r.PageSize
	}
	if r.Margin != nil {
		f["margin"] = fmt.Sprint(*r.Margin)
	}
	if r.Upscale != nil {
		f["upscale"] = fmt.Sprint(*r.Upscale)
	}
	if r.PDFMode != "" {
		f["pdf_mode"] = r.PDFMode
	}
	return f
}

// options overlays the request on the configured defaults.
func (r Request) options(s config.Settings) (binder.Options, error) {
	opts, err := binder.OptionsFromSettings(s)
	if err != nil {
		return binder.Options{}, err
	}
	if r.PageSize != "" {
		page, err := layout.ParsePageSize(r.PageSize)
		if err != nil {
			return binder.Options{}, err
		}
		opts.PageSize = page
	}
	if r.Margin != nil {
		opts.Margin = *r.Margin
	}
	if r.Upscale != nil {
		opts.Upscale = *r.Upscale
	}
	if r.PDFMode != "" {
		opts.PDFMode = r.PDFMode
	}
	if r.Optimize != nil {
		opts.Optimize = *r.Optimize
	}
	opts.Pages = pdfprocessor.ParseSelection(r.Pages)
	return opts, nil
}

// outputName is the download name of the output document.
func (r Request) outputName() string {
	return security.SanitizeFilename(r.Filename, defaultFilename)
}

// validationDetail turns a binding error into a short description of the
// first offending field.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, ve := range verrs {
			switch ve.Tag() {
			case "oneof":
				return fmt.Sprintf("%s must be one of: %s", ve.Field(), ve.Param())
			case "url":
				return fmt.Sprintf("%s must be a URL", ve.Field())
			case "max":
				return fmt.Sprintf("%s is longer than %s", ve.Field(), ve.Param())
			case "gte", "lte":
				return fmt.Sprintf("%s is out of range", ve.Field())
			case "required":
				return fmt.Sprintf("%s is required", ve.Field())
			default:
				return fmt.Sprintf("%s is invalid", ve.Field())
			}
		}
	}
	return "malformed request"
}
