package rss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example News</title>
  <item>
    <title>First story breaks</title>
    <link>https://example.com/first</link>
    <description>Plain description</description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    <dc:creator>Jane Reporter</dc:creator>
  </item>
  <item>
    <title><![CDATA[Second story & more]]></title>
    <link>https://example.com/second</link>
    <description><![CDATA[<p>Rich <b>HTML</b> teaser</p>]]></description>
    <content:encoded><![CDATA[<p>Full body text</p>]]></content:encoded>
  </item>
</channel>
</rss>`

func TestParseFeedRSSItems(t *testing.T) {
	items, err := ParseFeed(sampleRSS)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "First story breaks", items[0].Title)
	assert.Equal(t, "https://example.com/first", items[0].Link)
	assert.Equal(t, "Plain description", items[0].Description)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", items[0].PubDate)
	assert.Equal(t, "Jane Reporter", items[0].Author)

	assert.Equal(t, "Second story & more", items[1].Title)
	assert.Equal(t, "Rich HTML teaser", items[1].Description)
	assert.Equal(t, "<p>Full body text</p>", items[1].ContentEncoded)
}

func TestParseFeedAtomEntries(t *testing.T) {
	feed := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Atom post</title>
    <link href="https://example.org/atom-post"/>
    <summary>An atom summary</summary>
    <published>2024-03-10T08:00:00Z</published>
    <author><name>Sam Writer</name></author>
  </entry>
</feed>`

	items, err := ParseFeed(feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Atom post", items[0].Title)
	assert.Equal(t, "https://example.org/atom-post", items[0].Link)
	assert.Equal(t, "An atom summary", items[0].Description)
	assert.Equal(t, "2024-03-10T08:00:00Z", items[0].PubDate)
	assert.Equal(t, "Sam Writer", items[0].Author)
}

func TestParseFeedEmptyInput(t *testing.T) {
	for name, input := range map[string]string{
		"empty":      "",
		"whitespace": "   \n\t  ",
		"bom only":   "\uFEFF",
	} {
		t.Run(name, func(t *testing.T) {
			items, err := ParseFeed(input)
			assert.ErrorIs(t, err, ErrEmptyFeed)
			assert.Nil(t, items)
		})
	}
}

func TestParseFeedStripsBOM(t *testing.T) {
	items, err := ParseFeed("\uFEFF" + sampleRSS)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestParseFeedDropsUnusableBlocks(t *testing.T) {
	feed := `<rss><channel>
  <item>
    <title>Keeper</title>
    <link>https://example.com/keeper</link>
  </item>
  <item>
    <description>No title here at all</description>
    <link>https://example.com/untitled</link>
  </item>
  <item>
    <title>Teaser with nothing else</title>
  </item>
</channel></rss>`

	items, err := ParseFeed(feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Keeper", items[0].Title)
}

func TestParseFeedMalformedDocument(t *testing.T) {
	// Non-empty garbage yields zero items without an error.
	items, err := ParseFeed("<html><body>not a feed</body></html>")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseFeedToleratesBrokenSiblings(t *testing.T) {
	// A truncated trailing item must not take the well-formed one down with it.
	feed := `<rss><channel>
  <item>
    <title>Survivor</title>
    <link>https://example.com/survivor</link>
  </item>
  <item>
    <title>Broken one
</channel></rss>`

	items, err := ParseFeed(feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Survivor", items[0].Title)
}

func TestParseFeedWhitespaceAndEntities(t *testing.T) {
	feed := `<rss><channel>
  <item>
    <title>  Spaced   out &amp; decoded  </title>
    <link>  https://example.com/spaced  </link>
    <description>line one
line two</description>
  </item>
</channel></rss>`

	items, err := ParseFeed(feed)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Spaced out & decoded", items[0].Title)
	assert.Equal(t, "https://example.com/spaced", items[0].Link)
	assert.Equal(t, "line one line two", items[0].Description)
}
