package helpers

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	apperr "github.com/jws1910/saleworker/pkg/errors"
)

const maxRedirects = 10

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Fetcher issues single-page GETs against storefronts with browser-like
// headers, a bounded timeout and redirect following. It never retries; that
// policy belongs to the caller.
type Fetcher struct {
	client  *http.Client
	limiter *HostLimiter
}

// NewFetcher creates a fetcher with the given per-request timeout and a
// per-host politeness rate limit.
func NewFetcher(timeout time.Duration, hostRateLimit float64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		limiter: NewHostLimiter(hostRateLimit, 2),
	}
}

// Client exposes the underlying HTTP client for transport-level test hooks.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch performs a GET against url and returns the response body as UTF-8
// text. Any failure, transport-level or a status the pipeline treats as an
// error, comes back as a classified *errors.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, brandKey, url string) (string, error) {
	if err := f.limiter.WaitURL(ctx, url); err != nil {
		return "", apperr.Classify(brandKey, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Classify(brandKey, 0, err)
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9,en-US;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.Classify(brandKey, 0, err)
	}
	defer resp.Body.Close()

	// 5xx and the explicitly classified statuses are errors; everything else
	// below 500 carries a usable body.
	switch {
	case resp.StatusCode >= 500:
		return "", apperr.Classify(brandKey, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone,
		resp.StatusCode == http.StatusTooManyRequests:
		return "", apperr.Classify(brandKey, resp.StatusCode, nil)
	}

	body := resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return "", apperr.Classify(brandKey, 0, gzErr)
		}
		defer gz.Close()
		body = gz
	}

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return "", apperr.Classify(brandKey, 0, err)
	}

	return toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// toUTF8 converts a response body to UTF-8 based on headers and content.
func toUTF8(bodyBytes []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return string(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return "", fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.String(), nil
}
