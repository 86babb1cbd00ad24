package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultTimeout     = 45 * time.Second
	defaultUserAgent   = "newswire/1.0 (feed ingestion; contact ops@newswire.local)"
	acceptHeader       = "application/rss+xml, application/xml, text/xml, application/atom+xml"
)

// FetcherConfig tunes the retry policy. Zero values fall back to production
// defaults; tests shrink the delays to milliseconds.
type FetcherConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	UserAgent   string
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// PermanentError marks failures retrying cannot fix: bad URLs, client-error
// statuses other than 429, per-attempt timeouts, and bodies that are not a
// feed. The fetcher aborts immediately when it sees one.
type PermanentError struct {
	URL    string
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

type Fetcher struct {
	client *http.Client
	cfg    FetcherConfig
	logger *slog.Logger
}

func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: &http.Client{}, cfg: cfg.withDefaults(), logger: logger}
}

// Fetch retrieves the feed body. Responses are classified per attempt:
// 2xx succeeds, 429 and 5xx and transport errors retry with exponential
// backoff (429 honors Retry-After), 400/401/403/404/410 and timeouts abort.
// The body must carry a recognizable feed marker so that an HTML error page
// served with a 200 never reaches the parser.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (string, error) {
	if err := validateFeedURL(feedURL); err != nil {
		return "", &PermanentError{URL: feedURL, Reason: err.Error()}
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		body, retryIn, err := f.attempt(ctx, feedURL, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return "", err
		}
		if attempt == f.cfg.MaxAttempts {
			break
		}

		f.logger.Warn("feed fetch failed, backing off",
			"url", feedURL, "attempt", attempt, "delay", retryIn, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryIn):
		}
	}
	return "", fmt.Errorf("fetch %s: giving up after %d attempts: %w", feedURL, f.cfg.MaxAttempts, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, feedURL string, attempt int) (string, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", 0, &PermanentError{URL: feedURL, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil && ctx.Err() == nil {
			// the per-attempt timer expired, not the caller's context
			return "", 0, &PermanentError{URL: feedURL, Reason: fmt.Sprintf("timeout after %s", f.cfg.Timeout)}
		}
		return "", f.backoff(attempt - 1), fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to read the body
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := f.backoff(attempt)
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		return "", delay, fmt.Errorf("HTTP 429: rate limited")
	case resp.StatusCode >= 500:
		return "", f.backoff(attempt - 1), fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	case permanentStatus(resp.StatusCode):
		return "", 0, &PermanentError{URL: feedURL, Reason: fmt.Sprintf("HTTP %d: %s (permanent)", resp.StatusCode, http.StatusText(resp.StatusCode))}
	default:
		return "", 0, &PermanentError{URL: feedURL, Reason: fmt.Sprintf("unexpected HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", f.backoff(attempt - 1), fmt.Errorf("reading response body: %w", err)
	}
	body := string(raw)
	if strings.TrimSpace(body) == "" {
		return "", 0, &PermanentError{URL: feedURL, Reason: "empty response body"}
	}
	if !strings.Contains(body, "<rss") && !strings.Contains(body, "<feed") && !strings.Contains(body, "<channel>") {
		return "", 0, &PermanentError{URL: feedURL, Reason: "response does not appear to be valid RSS/Atom XML"}
	}
	return body, 0, nil
}

func (f *Fetcher) backoff(exp int) time.Duration {
	if exp < 0 {
		exp = 0
	}
	return f.cfg.BaseDelay * time.Duration(1<<uint(exp))
}

func permanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

func validateFeedURL(feedURL string) error {
	trimmed := strings.TrimSpace(feedURL)
	if trimmed == "" {
		return errors.New("missing feed URL")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("feed URL must be absolute http(s)")
	}
	return nil
}
