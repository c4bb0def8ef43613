package merge

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rmitchellscott/binder/internal/binder"
	"github.com/rmitchellscott/binder/internal/converter"
	"github.com/rmitchellscott/binder/internal/downloader"
	"github.com/rmitchellscott/binder/internal/media"
	"github.com/rmitchellscott/binder/internal/pdfprocessor"
	"github.com/rmitchellscott/binder/internal/security"
)

// errBadForm marks request bodies that could not be parsed at all.
var errBadForm = errors.New("invalid upload form")

// errBadOptions marks parameters that failed validation.
var errBadOptions = errors.New("invalid options")

// fetchError remembers which URL failed.
type fetchError struct {
	URL string
	Err error
}

func (e *fetchError) Error() string { return e.URL + ": " + e.Err.Error() }
func (e *fetchError) Unwrap() error { return e.Err }

var urlRejections = []error{
	security.ErrEmptyURL,
	security.ErrInvalidURL,
	security.ErrInvalidScheme,
	security.ErrPrivateIP,
	security.ErrBlockedDomain,
	security.ErrIPResolutionFailed,
}

// describe maps a merge failure to an HTTP status, an i18n key and its
// template data.
func describe(err error, limits media.Limits) (int, string, map[string]string) {
	data := map[string]string{}
	var inErr *binder.InputError
	if errors.As(err, &inErr) {
		data["name"] = inErr.Name
	}
	var fErr *fetchError
	if errors.As(err, &fErr) {
		data["url"] = fErr.URL
		data["name"] = fErr.URL
	}
	var maxErr *http.MaxBytesError
	var optErr *optionsError

	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "backend.errors.request_too_large", nil
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest, "backend.errors.invalid_form", nil
	case errors.As(err, &optErr):
		return http.StatusBadRequest, "backend.errors.invalid_options", map[string]string{"detail": optErr.Detail}
	case errors.Is(err, media.ErrNoFiles):
		return http.StatusBadRequest, "backend.errors.no_files", nil
	case errors.Is(err, media.ErrTooManyFiles):
		return http.StatusRequestEntityTooLarge, "backend.errors.too_many_files", map[string]string{"limit": strconv.Itoa(limits.MaxFiles)}
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "backend.errors.file_too_large", data
	case errors.Is(err, media.ErrNameTooLong):
		return http.StatusBadRequest, "backend.errors.filename_too_long", data
	case errors.Is(err, pdfprocessor.ErrInvalidSelection):
		return http.StatusBadRequest, "backend.errors.invalid_pages", nil
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmptyFile):
		return http.StatusUnsupportedMediaType, "backend.errors.unsupported_type", data
	case errors.Is(err, converter.ErrInvalidImage), errors.Is(err, converter.ErrImageTooBig):
		return http.StatusUnprocessableEntity, "backend.errors.invalid_image", data
	case errors.Is(err, pdfprocessor.ErrInvalidPDF):
		return http.StatusUnprocessableEntity, "backend.errors.invalid_pdf", data
	case isURLRejection(err):
		return http.StatusBadRequest, "backend.errors.invalid_url", data
	case errors.Is(err, downloader.ErrFetchFailed):
		return http.StatusBadGateway, "backend.errors.fetch_failed", data
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend.errors.generate_failed", nil
	default:
		return http.StatusInternalServerError, "backend.errors.generate_failed", nil
	}
}

func isURLRejection(err error) bool {
	for _, target := range urlRejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// optionsError carries a human readable validation detail.
type optionsError struct {
	Detail string
}

func (e *optionsError) Error() string { return "invalid options: " + e.Detail }
func (e *optionsError) Unwrap() error { return errBadOptions }
