package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/media"
	"github.com/rmitchellscott/binder/internal/security"
)

var ErrFetchFailed = errors.New("failed to fetch remote file")

// Fetch downloads rawURL into memory for inclusion in a merge. The body is
// capped at maxBytes (0 disables the cap). The returned name comes from
// Content-Disposition, then the URL path.
func Fetch(ctx context.Context, rawURL string, maxBytes int64) (string, []byte, error) {
	if err := security.ValidateURL(rawURL); err != nil {
		return "", nil, fmt.Errorf("URL validation failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("%w: status %s", ErrFetchFailed, resp.Status)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return "", nil, fmt.Errorf("%w: %s is %d bytes", media.ErrTooLarge, rawURL, resp.ContentLength)
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading body: %w", ErrFetchFailed, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", nil, fmt.Errorf("%w: %s exceeds %d bytes", media.ErrTooLarge, rawURL, maxBytes)
	}

	name := filenameFor(resp.Header.Get("Content-Disposition"), resp.Request.URL)
	logging.Logf("[FETCH] %s -> %s (%d bytes)", rawURL, name, len(data))
	return name, data, nil
}

func filenameFor(disposition string, u *url.URL) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if n := strings.TrimSpace(params["filename"]); n != "" {
				return path.Base(strings.ReplaceAll(n, `\`, "/"))
			}
		}
	}
	if u != nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			if unescaped, err := url.PathUnescape(base); err == nil {
				return unescaped
			}
			return base
		}
		return u.Hostname()
	}
	return "download"
}
