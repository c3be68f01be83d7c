package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragedhq/raged/pkg/logger"
)

// Failure reasons reported per URL.
const (
	ReasonSSRFBlocked   = "ssrf_blocked"
	ReasonTimeout       = "timeout"
	ReasonTooLarge      = "too_large"
	ReasonRedirectLimit = "redirect_limit"
	ReasonFetchFailed   = "fetch_failed"
)

// Config tunes the fetcher.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRedirects int
	Concurrency  int

	// AllowPrivate disables the address denylist. Local development only.
	AllowPrivate bool
}

// DefaultConfig returns the standard fetch limits: 30s per URL, 10MiB
// bodies, 5 redirect hops, 5 URLs in flight.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxBodyBytes: 10 << 20,
		MaxRedirects: 5,
		Concurrency:  5,
	}
}

// Result is one successful fetch.
type Result struct {
	URL         string
	FinalURL    string
	Body        []byte
	ContentType string
}

// Error is one failed fetch, tagged with a stable reason.
type Error struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Fetcher downloads URLs with SSRF validation on every hop and on every
// dialled address.
type Fetcher struct {
	cfg       Config
	validator *Validator
	client    *http.Client
	log       *slog.Logger
}

// NewFetcher creates a fetcher. Redirects are followed manually so each
// hop target is validated before it is contacted.
func NewFetcher(cfg Config, log *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	validator := NewValidator()
	if cfg.AllowPrivate {
		validator = NewPermissiveValidator()
	}

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			return validator.ValidateDialAddress(address)
		},
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Fetcher{
		cfg:       cfg,
		validator: validator,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log.With(logger.Scope("fetch")),
	}
}

// FetchAll downloads the given URLs, deduplicated, with bounded
// parallelism. Partial success is the normal mode: failures come back as
// typed errors, successes as results.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Result, []Error) {
	unique := dedup(urls)

	var mu sync.Mutex
	var results []Result
	var failures []Error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	for _, u := range unique {
		u := u
		g.Go(func() error {
			res, ferr := f.FetchOne(gctx, u)
			mu.Lock()
			defer mu.Unlock()
			if ferr != nil {
				failures = append(failures, *ferr)
			} else {
				results = append(results, *res)
			}
			// Per-URL failures never abort the batch.
			return nil
		})
	}

	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].URL < results[j].URL })
	sort.Slice(failures, func(i, j int) bool { return failures[i].URL < failures[j].URL })
	return results, failures
}

// FetchOne downloads a single URL under the configured limits.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string) (*Result, *Error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Reason: ReasonFetchFailed, Detail: err.Error()}
	}

	for hop := 0; ; hop++ {
		if hop > f.cfg.MaxRedirects {
			return nil, &Error{URL: rawURL, Reason: ReasonRedirectLimit,
				Detail: fmt.Sprintf("more than %d redirects", f.cfg.MaxRedirects)}
		}

		if err := f.validator.validateParsed(current); err != nil {
			return nil, &Error{URL: rawURL, Reason: ReasonSSRFBlocked, Detail: err.Error()}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return nil, &Error{URL: rawURL, Reason: ReasonFetchFailed, Detail: err.Error()}
		}
		req.Header.Set("User-Agent", "raged/1.0")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, classifyTransportError(rawURL, err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			if location == "" {
				return nil, &Error{URL: rawURL, Reason: ReasonFetchFailed, Detail: "redirect without location"}
			}

			next, err := current.Parse(location)
			if err != nil {
				return nil, &Error{URL: rawURL, Reason: ReasonFetchFailed, Detail: "invalid redirect location"}
			}
			if next.Scheme != "http" && next.Scheme != "https" {
				return nil, &Error{URL: rawURL, Reason: ReasonSSRFBlocked,
					Detail: fmt.Sprintf("redirect to scheme %q", next.Scheme)}
			}
			if current.Scheme == "https" && next.Scheme == "http" {
				return nil, &Error{URL: rawURL, Reason: ReasonSSRFBlocked, Detail: "https to http downgrade"}
			}

			current = next
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &Error{URL: rawURL, Reason: ReasonFetchFailed,
				Detail: fmt.Sprintf("status %d", resp.StatusCode)}
		}

		if resp.ContentLength > f.cfg.MaxBodyBytes {
			return nil, &Error{URL: rawURL, Reason: ReasonTooLarge,
				Detail: fmt.Sprintf("content-length %d exceeds %d", resp.ContentLength, f.cfg.MaxBodyBytes)}
		}

		// Read one byte past the cap to detect overflow on streams that
		// do not announce their length.
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
		if err != nil {
			return nil, classifyTransportError(rawURL, err)
		}
		if int64(len(body)) > f.cfg.MaxBodyBytes {
			return nil, &Error{URL: rawURL, Reason: ReasonTooLarge,
				Detail: fmt.Sprintf("body exceeds %d bytes", f.cfg.MaxBodyBytes)}
		}

		f.log.Debug("fetched url",
			slog.String("url", rawURL),
			slog.Int("bytes", len(body)),
			slog.Int("hops", hop),
		)

		return &Result{
			URL:         rawURL,
			FinalURL:    current.String(),
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil
	}
}

func classifyTransportError(rawURL string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{URL: rawURL, Reason: ReasonTimeout, Detail: "fetch timed out"}
	case isBlockedDialError(err):
		return &Error{URL: rawURL, Reason: ReasonSSRFBlocked, Detail: err.Error()}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &Error{URL: rawURL, Reason: ReasonTimeout, Detail: "fetch timed out"}
		}
		return &Error{URL: rawURL, Reason: ReasonFetchFailed, Detail: err.Error()}
	}
}

// isBlockedDialError detects validator rejections surfaced through the
// dialer's control hook.
func isBlockedDialError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "blocked range") || strings.Contains(msg, "not allowed")
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func dedup(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
