package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"RadNode/internal/radon"
)

// DefaultMaxResponseSize bounds HTTP bodies when no limit is configured.
const DefaultMaxResponseSize = 1 << 20

// HTTPConfig holds the HTTP fetcher settings.
type HTTPConfig struct {
	AllowedDomains  []string      // AllowedDomains restricts hosts, empty allows all
	MaxResponseSize int64         // MaxResponseSize bounds the decoded body in bytes
	RequestTimeout  time.Duration // RequestTimeout bounds a single request, 0 means none
	UserAgent       string        // UserAgent is sent with every request
}

// HTTPFetcher retrieves http-get sources.
type HTTPFetcher struct {
	client  *http.Client // client performs the requests
	cfg     HTTPConfig   // cfg holds limits and the allowlist
	allowed []string     // allowed are the lowercased allowlist entries
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(cfg HTTPConfig) *HTTPFetcher {
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = DefaultMaxResponseSize
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "radnode/1"
	}

	allowed := make([]string, 0, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			allowed = append(allowed, d)
		}
	}

	return &HTTPFetcher{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		cfg:     cfg,
		allowed: allowed,
	}
}

// Fetch performs a GET and returns the decoded body.
func (f *HTTPFetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	target, err := url.Parse(src.URL)
	if err != nil {
		return nil, httpError(err)
	}

	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, radon.NewError(radon.ErrHTTP, radon.String("unsupported scheme "+target.Scheme))
	}

	if !f.isAllowed(target.Hostname()) {
		return nil, radon.NewError(radon.ErrHTTP, radon.String("domain not allowed: "+target.Hostname()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, httpError(err)
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, httpError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, radon.NewError(radon.ErrHTTPStatus, radon.NewInteger(int64(resp.StatusCode)))
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, httpError(err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.cfg.MaxResponseSize+1))
	if err != nil {
		return nil, httpError(err)
	}

	if int64(len(data)) > f.cfg.MaxResponseSize {
		return nil, radon.NewError(radon.ErrHTTP,
			radon.String(fmt.Sprintf("response exceeds %d bytes", f.cfg.MaxResponseSize)))
	}

	return data, nil
}

// isAllowed reports whether host matches an allowlist entry or one of its subdomains.
func (f *HTTPFetcher) isAllowed(host string) bool {
	if len(f.allowed) == 0 {
		return true
	}

	host = strings.ToLower(host)
	for _, d := range f.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

// decodeBody wraps the response body according to its Content-Encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body:\n%w", err)
		}

		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd body:\n%w", err)
		}

		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

// httpError converts a transport failure into an HTTPError payload.
func httpError(err error) error {
	var re *radon.Error
	if errors.As(err, &re) {
		return re
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return radon.NewError(radon.ErrRetrieveTimeout)
	}

	return radon.NewError(radon.ErrHTTP, radon.String(err.Error()))
}
