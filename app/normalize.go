package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"newswire/domain"
	"newswire/internal/textutil"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 500
	maxURLLen         = 2000
	maxContentLen     = 5000
	maxAuthorLen      = 100

	maxArticleAge    = 365 * 24 * time.Hour
	maxArticleFuture = 7 * 24 * time.Hour
)

// Normalize validates and sanitizes one raw feed item into an Article ready
// for insertion. The returned error names the rejection reason; callers log
// it and move on to the next item.
func Normalize(item domain.RawFeedItem, sourceID string, now time.Time) (domain.Article, error) {
	if item.Title == "" || item.Link == "" {
		return domain.Article{}, fmt.Errorf("missing title or link")
	}
	title := strings.TrimSpace(item.Title)
	if len([]rune(title)) < 3 {
		return domain.Article{}, fmt.Errorf("title too short: %q", title)
	}

	cleanURL, err := canonicalizeURL(item.Link)
	if err != nil {
		return domain.Article{}, err
	}

	description := textutil.Truncate(sanitizeText(item.Description), maxDescriptionLen)
	content := textutil.Truncate(sanitizeText(item.ContentEncoded), maxContentLen)
	if content == "" {
		content = description
	}

	return domain.Article{
		Title:       textutil.Truncate(title, maxTitleLen),
		Description: description,
		URL:         cleanURL,
		PublishedAt: parsePublishDate(item.PubDate, now),
		SourceID:    sourceID,
		Content:     content,
		ContentHash: ContentHash(title, cleanURL),
		Author:      textutil.Truncate(textutil.CollapseSpace(item.Author), maxAuthorLen),
	}, nil
}

func canonicalizeURL(link string) (string, error) {
	raw := strings.TrimSpace(link)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", fmt.Errorf("invalid URL scheme: %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %v", raw, err)
	}
	if len(u.Hostname()) < 3 {
		return "", fmt.Errorf("invalid hostname: %q", u.Hostname())
	}
	clean := u.String()
	if len(clean) > maxURLLen {
		return "", fmt.Errorf("URL too long: %d characters", len(clean))
	}
	return clean, nil
}

// Feeds ship garbage timestamps (epoch zero, far-future dates) often enough
// that anything outside a sane window is replaced with the current time
// rather than rejecting the article.
func parsePublishDate(pubDate string, now time.Time) time.Time {
	raw := strings.TrimSpace(pubDate)
	if raw == "" {
		return now
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return now
	}
	if parsed.Before(now.Add(-maxArticleAge)) || parsed.After(now.Add(maxArticleFuture)) {
		return now
	}
	return parsed
}

func sanitizeText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return textutil.CollapseSpace(textutil.DecodeEntities(textutil.StripHTML(s)))
}

// ContentHash digests title and canonical URL with a 31-multiplier rolling
// hash, absolute value base-36 encoded. The store's existing content_hash
// values were produced this way; a different digest would orphan them and
// re-insert the whole corpus on the next run.
func ContentHash(title, url string) string {
	var hash int32
	for _, r := range title + "|" + url {
		hash = hash*31 + int32(r)
	}
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
