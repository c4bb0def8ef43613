package downloader

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rmitchellscott/binder/internal/security"
	"github.com/rmitchellscott/binder/internal/version"
)

// Clients used for HTTP requests. The server applies SNIFF_TIMEOUT and
// FETCH_TIMEOUT through Configure once the environment is loaded.
var (
	sniffTimeout = 5 * time.Second
	fetchTimeout = 30 * time.Second
	sniffClient  = &http.Client{Timeout: sniffTimeout, CheckRedirect: checkRedirect}
	fetchClient  = &http.Client{Timeout: fetchTimeout, CheckRedirect: checkRedirect}
)

const maxRedirects = 5

// checkRedirect re-validates every hop so a public URL cannot bounce the
// server onto a private address.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 5 redirects")
	}
	if err := security.ValidateURL(req.URL.String()); err != nil {
		return fmt.Errorf("redirect blocked: %w", err)
	}
	return nil
}

// Configure applies the configured request timeouts.
func Configure(fetch, sniff time.Duration) {
	if fetch > 0 {
		SetFetchTimeout(fetch)
	}
	if sniff > 0 {
		SetSniffTimeout(sniff)
	}
}

// SetSniffTimeout updates the timeout for SniffMime requests.
func SetSniffTimeout(d time.Duration) {
	sniffTimeout = d
	sniffClient.Timeout = d
}

// SetFetchTimeout updates the timeout for Fetch requests.
func SetFetchTimeout(d time.Duration) {
	fetchTimeout = d
	fetchClient.Timeout = d
}

func userAgent() string {
	return "binder/" + version.Get().Version
}
