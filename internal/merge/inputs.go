package merge

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/vincent-petithory/dataurl"

	"github.com/rmitchellscott/binder/internal/binder"
	"github.com/rmitchellscott/binder/internal/downloader"
	"github.com/rmitchellscott/binder/internal/media"
)

// fileFields are the multipart fields that carry uploads, in the order they
// are merged.
var fileFields = []string{"files", "files[]"}

// uploadedFiles returns the file headers of a parsed multipart form.
func uploadedFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	var headers []*multipart.FileHeader
	for _, field := range fileFields {
		headers = append(headers, form.File[field]...)
	}
	return headers
}

// readUploads checks every header against limits before reading any of
// them into memory.
func readUploads(headers []*multipart.FileHeader, limits media.Limits) ([]binder.Input, error) {
	for i, fh := range headers {
		if err := limits.Check(fh.Filename, fh.Size); err != nil {
			return nil, &binder.InputError{Index: i, Name: fh.Filename, Err: err}
		}
	}

	inputs := make([]binder.Input, 0, len(headers))
	for i, fh := range headers {
		data, err := readHeader(fh)
		if err != nil {
			return nil, &binder.InputError{Index: i, Name: fh.Filename, Err: fmt.Errorf("%w: %v", errBadForm, err)}
		}
		inputs = append(inputs, binder.Input{Name: fh.Filename, Data: data})
	}
	return inputs, nil
}

func readHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// decodeDataURLs turns JSON data URL inputs into merge inputs. The media
// type declared in the data URL is ignored; content is sniffed later like
// any upload.
func decodeDataURLs(files []JSONFile, limits media.Limits) ([]binder.Input, error) {
	inputs := make([]binder.Input, 0, len(files))
	for i, f := range files {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("file-%d", i+1)
		}
		// base64 inflates by 4/3, so reject obviously oversized payloads
		// before decoding them
		if limits.MaxFileSize > 0 && int64(len(f.Data)) > limits.MaxFileSize*4/3+1024 {
			return nil, &binder.InputError{Index: i, Name: name, Err: media.ErrTooLarge}
		}
		du, err := dataurl.DecodeString(f.Data)
		if err != nil {
			return nil, &binder.InputError{Index: i, Name: name, Err: &optionsError{Detail: fmt.Sprintf("files[%d].data is not a data URL", i)}}
		}
		if err := limits.Check(name, int64(len(du.Data))); err != nil {
			return nil, &binder.InputError{Index: i, Name: name, Err: err}
		}
		inputs = append(inputs, binder.Input{Name: name, Data: du.Data})
	}
	return inputs, nil
}

// fetchAll downloads remote inputs in order. onFetch is called before each
// download.
func fetchAll(ctx context.Context, urls []string, limits media.Limits, onFetch func(i int, url string)) ([]binder.Input, error) {
	inputs := make([]binder.Input, 0, len(urls))
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onFetch != nil {
			onFetch(i, u)
		}
		name, data, err := downloader.Fetch(ctx, u, limits.MaxFileSize)
		if err != nil {
			return nil, &fetchError{URL: u, Err: err}
		}
		if err := limits.Check(name, int64(len(data))); err != nil {
			return nil, &fetchError{URL: u, Err: err}
		}
		inputs = append(inputs, binder.Input{Name: name, Data: data})
	}
	return inputs, nil
}
