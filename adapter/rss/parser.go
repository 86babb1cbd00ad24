package rss

import (
	"errors"
	"regexp"
	"strings"

	"newswire/domain"
	"newswire/internal/textutil"
)

// Real-world feeds routinely violate XML well-formedness in ways a strict
// parser rejects, so item blocks are pulled out with tolerant, case-insensitive
// pattern matching and each block is processed independently. A block that
// cannot be extracted is skipped, never fatal.
var (
	itemBlockRe  = regexp.MustCompile(`(?is)<item[^>]*>.*?</item>`)
	entryBlockRe = regexp.MustCompile(`(?is)<entry[^>]*>.*?</entry>`)

	titleRe   = regexp.MustCompile(`(?is)<(?:title|atom:title)[^>]*>\s*(?:<!\[CDATA\[(.*?)\]\]>|(.*?))\s*</(?:title|atom:title)>`)
	descRe    = regexp.MustCompile(`(?is)<(?:description|summary|content|atom:summary)[^>]*>\s*(?:<!\[CDATA\[(.*?)\]\]>|(.*?))\s*</(?:description|summary|content|atom:summary)>`)
	linkRe    = regexp.MustCompile(`(?is)<(?:link|atom:link)[^>]*?(?:href="([^"]*)"[^>]*>|>\s*(?:<!\[CDATA\[(.*?)\]\]>|(.*?))\s*</(?:link|atom:link)>)`)
	dateRe    = regexp.MustCompile(`(?is)<(?:pubDate|published|atom:published|dc:date|lastBuildDate)[^>]*>\s*(.*?)\s*</(?:pubDate|published|atom:published|dc:date|lastBuildDate)>`)
	encodedRe = regexp.MustCompile(`(?is)<content:encoded[^>]*>\s*(?:<!\[CDATA\[(.*?)\]\]>|(.*?))\s*</content:encoded>`)
	authorRe  = regexp.MustCompile(`(?is)<(?:dc:creator|author|managingEditor|atom:author)[^>]*>\s*(?:<name>)?(.*?)(?:</name>)?\s*</(?:dc:creator|author|managingEditor|atom:author)>`)
)

// ErrEmptyFeed is the only failure ParseFeed produces: a document that is
// empty once the BOM and surrounding whitespace are stripped.
var ErrEmptyFeed = errors.New("empty feed document")

// ParseFeed extracts raw items from RSS 2.0 <item> and Atom <entry> blocks.
// Blocks lacking a title plus at least one of link or description are
// dropped; zero surviving items is a legitimate result, not an error.
func ParseFeed(xmlText string) ([]domain.RawFeedItem, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(xmlText, "\uFEFF"))
	if clean == "" {
		return nil, ErrEmptyFeed
	}

	blocks := itemBlockRe.FindAllString(clean, -1)
	blocks = append(blocks, entryBlockRe.FindAllString(clean, -1)...)

	items := make([]domain.RawFeedItem, 0, len(blocks))
	for _, block := range blocks {
		if item, ok := parseBlock(block); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseBlock(block string) (domain.RawFeedItem, bool) {
	var item domain.RawFeedItem

	if m := titleRe.FindStringSubmatch(block); m != nil {
		if title := textutil.CollapseSpace(firstGroup(m[1], m[2])); title != "" {
			item.Title = textutil.DecodeEntities(title)
		}
	}
	if m := descRe.FindStringSubmatch(block); m != nil {
		if desc := textutil.CollapseSpace(textutil.StripHTML(firstGroup(m[1], m[2]))); desc != "" {
			item.Description = textutil.DecodeEntities(desc)
		}
	}
	if m := linkRe.FindStringSubmatch(block); m != nil {
		if link := textutil.StripSpace(firstGroup(m[1], m[2], m[3])); link != "" {
			item.Link = link
		}
	}
	if m := dateRe.FindStringSubmatch(block); m != nil {
		if date := strings.TrimSpace(m[1]); date != "" {
			item.PubDate = date
		}
	}
	if m := encodedRe.FindStringSubmatch(block); m != nil {
		if content := strings.TrimSpace(firstGroup(m[1], m[2])); content != "" {
			item.ContentEncoded = content
		}
	}
	if m := authorRe.FindStringSubmatch(block); m != nil {
		if author := textutil.CollapseSpace(m[1]); author != "" {
			item.Author = textutil.DecodeEntities(author)
		}
	}

	// Teaser-only and malformed entries cannot be usefully ingested.
	if item.Title == "" || (item.Link == "" && item.Description == "") {
		return domain.RawFeedItem{}, false
	}
	return item, true
}

func firstGroup(groups ...string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
