package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localFetcher(t *testing.T, mutate func(*Config)) *Fetcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AllowPrivate = true
	cfg.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	return NewFetcher(cfg, testLogger())
}

func TestFetchOneSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "hello world")
	}))
	defer srv.Close()

	f := localFetcher(t, nil)
	res, ferr := f.FetchOne(context.Background(), srv.URL)
	require.Nil(t, ferr)
	assert.Equal(t, "hello world", string(res.Body))
	assert.Equal(t, srv.URL, res.URL)
	assert.Contains(t, res.ContentType, "text/plain")
}

func TestFetchOneFollowsRedirects(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	}))
	defer final.Close()

	hop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/dest", http.StatusFound)
	}))
	defer hop.Close()

	f := localFetcher(t, nil)
	res, ferr := f.FetchOne(context.Background(), hop.URL)
	require.Nil(t, ferr)
	assert.Equal(t, "landed", string(res.Body))
	assert.Equal(t, hop.URL, res.URL)
	assert.Equal(t, final.URL+"/dest", res.FinalURL)
}

func TestFetchOneResolvesRelativeRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			w.Header().Set("Location", "/end")
			w.WriteHeader(http.StatusMovedPermanently)
			return
		}
		fmt.Fprint(w, "relative ok")
	}))
	defer srv.Close()

	f := localFetcher(t, nil)
	res, ferr := f.FetchOne(context.Background(), srv.URL+"/start")
	require.Nil(t, ferr)
	assert.Equal(t, "relative ok", string(res.Body))
	assert.Equal(t, srv.URL+"/end", res.FinalURL)
}

func TestFetchOneRedirectLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := localFetcher(t, nil)
	_, ferr := f.FetchOne(context.Background(), srv.URL+"/loop")
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonRedirectLimit, ferr.Reason)
}

func TestFetchOneRejectsNonHTTPRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "file:///etc/passwd")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	f := localFetcher(t, nil)
	_, ferr := f.FetchOne(context.Background(), srv.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonSSRFBlocked, ferr.Reason)
}

func TestFetchOneTooLargeByContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := localFetcher(t, func(c *Config) { c.MaxBodyBytes = 1024 })
	_, ferr := f.FetchOne(context.Background(), srv.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonTooLarge, ferr.Reason)
}

func TestFetchOneTooLargeByStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flush first so no Content-Length header is sent.
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		chunk := strings.Repeat("a", 512)
		for i := 0; i < 10; i++ {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	f := localFetcher(t, func(c *Config) { c.MaxBodyBytes = 1024 })
	_, ferr := f.FetchOne(context.Background(), srv.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonTooLarge, ferr.Reason)
}

func TestFetchOneBodyAtExactCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	f := localFetcher(t, func(c *Config) { c.MaxBodyBytes = 1024 })
	res, ferr := f.FetchOne(context.Background(), srv.URL)
	require.Nil(t, ferr)
	assert.Len(t, res.Body, 1024)
}

func TestFetchOneTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	f := localFetcher(t, func(c *Config) { c.Timeout = 100 * time.Millisecond })
	_, ferr := f.FetchOne(context.Background(), srv.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonTimeout, ferr.Reason)
}

func TestFetchOneHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := localFetcher(t, nil)
	_, ferr := f.FetchOne(context.Background(), srv.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonFetchFailed, ferr.Reason)
	assert.Contains(t, ferr.Detail, "404")
}

func TestFetchOneBlockedBeforeDial(t *testing.T) {
	f := NewFetcher(DefaultConfig(), testLogger())
	_, ferr := f.FetchOne(context.Background(), "http://169.254.169.254/latest/meta-data/")
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonSSRFBlocked, ferr.Reason)

	_, ferr = f.FetchOne(context.Background(), "http://localhost/secret")
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonSSRFBlocked, ferr.Reason)
}

func TestFetchOneConnectionRefused(t *testing.T) {
	// Grab an address that nothing is listening on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f := localFetcher(t, nil)
	_, ferr := f.FetchOne(context.Background(), addr)
	require.NotNil(t, ferr)
	assert.Equal(t, ReasonFetchFailed, ferr.Reason)
}

func TestFetchAllPartialSuccessAndDedup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := localFetcher(t, nil)
	results, failures := f.FetchAll(context.Background(), []string{
		srv.URL + "/good",
		srv.URL + "/good",
		srv.URL + "/bad",
	})

	require.Len(t, results, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, srv.URL+"/good", results[0].URL)
	assert.Equal(t, ReasonFetchFailed, failures[0].Reason)
}

func TestDedupPreservesOrder(t *testing.T) {
	out := dedup([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}
