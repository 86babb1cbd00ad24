package rss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedBody = `<rss version="2.0"><channel><title>ok</title></channel></rss>`

func testFetcher(t *testing.T, cfg FetcherConfig) *Fetcher {
	t.Helper()
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Millisecond
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFetcher(cfg, logger)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{})
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, feedBody, body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{MaxAttempts: 2})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 attempts")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchPermanentStatusAbortsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{})
	_, err := f.Fetch(context.Background(), srv.URL)
	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
	assert.Contains(t, perm.Reason, "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchHonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{})
	start := time.Now()
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, feedBody, body)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchRejectsNonFeedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Service temporarily down</body></html>"))
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{})
	_, err := f.Fetch(context.Background(), srv.URL)
	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
	assert.Contains(t, perm.Reason, "valid RSS/Atom")
}

func TestFetchRejectsEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("   \n"))
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{})
	_, err := f.Fetch(context.Background(), srv.URL)
	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
	assert.Contains(t, perm.Reason, "empty response body")
}

func TestFetchValidatesURL(t *testing.T) {
	f := testFetcher(t, FetcherConfig{})
	for name, feedURL := range map[string]string{
		"empty":    "",
		"relative": "/feeds/news.xml",
		"scheme":   "ftp://example.com/feed",
		"no host":  "http://",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), feedURL)
			var perm *PermanentError
			assert.ErrorAs(t, err, &perm)
		})
	}
}

func TestFetchSendsIdentifyingHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	f := testFetcher(t, FetcherConfig{UserAgent: "newswire-test/1.0"})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "newswire-test/1.0", gotUA)
	assert.Contains(t, gotAccept, "application/rss+xml")
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := testFetcher(t, FetcherConfig{BaseDelay: time.Minute})
	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
