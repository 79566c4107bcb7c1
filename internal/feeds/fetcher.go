// Package feeds checks the RSS sources configured for training data and
// imports feed lists from OPML.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// Checker fetches feeds and reports whether they parse.
type Checker struct {
	parser    *gofeed.Parser
	client    *http.Client
	policy    *bluemonday.Policy
	userAgent string
	timeout   time.Duration
}

// OPML structures for parsing
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Body    OPMLBody `xml:"body"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	Type     string        `xml:"type,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []OPMLOutline `xml:"outline"`
}

// NewChecker creates a feed checker. timeout applies to each feed.
func NewChecker(userAgent string, timeout time.Duration) *Checker {
	if userAgent == "" {
		userAgent = "ares-setup/1.0"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Checker{
		parser:    parser,
		client:    &http.Client{},
		policy:    bluemonday.StrictPolicy(),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Status is the outcome of checking one feed URL.
type Status struct {
	URL      string `json:"url"`
	OK       bool   `json:"ok"`
	Title    string `json:"title,omitempty"`
	Items    int    `json:"items"`
	FeedType string `json:"feed_type,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Check fetches every URL in order. Failures are recorded per feed; the
// returned slice always has one entry per URL.
func (c *Checker) Check(ctx context.Context, urls []string) []Status {
	statuses := make([]Status, 0, len(urls))
	for _, u := range urls {
		feedCtx, cancel := context.WithTimeout(ctx, c.timeout)
		feed, err := c.FetchFeed(feedCtx, u)
		cancel()

		st := Status{URL: u}
		if err != nil {
			st.Error = err.Error()
		} else {
			st.OK = true
			st.Title = c.sanitize(feed.Title)
			st.Items = len(feed.Items)
			st.FeedType = feed.FeedType
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// FetchFeed fetches and parses a single feed.
func (c *Checker) FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", url, err)
	}

	parsed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}
	return parsed, nil
}

// sanitize strips markup from feed-supplied text before it reaches a terminal.
func (c *Checker) sanitize(s string) string {
	return strings.TrimSpace(c.policy.Sanitize(s))
}

// ImportOPML returns the feed URLs of every outline in an OPML file, folders
// included, in document order without duplicates.
func ImportOPML(opmlPath string) ([]string, error) {
	data, err := os.ReadFile(opmlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OPML file: %w", err)
	}

	var opml OPML
	if err := xml.Unmarshal(data, &opml); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	var urls []string
	seen := make(map[string]bool)
	var processOutlines func(outlines []OPMLOutline)
	processOutlines = func(outlines []OPMLOutline) {
		for _, outline := range outlines {
			if u := strings.TrimSpace(outline.XMLURL); u != "" && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
			// Process nested outlines (folders)
			if len(outline.Outlines) > 0 {
				processOutlines(outline.Outlines)
			}
		}
	}

	processOutlines(opml.Body.Outlines)
	return urls, nil
}

// Merge appends the URLs of extra missing from existing, keeping order.
func Merge(existing, extra []string) (merged []string, added int) {
	merged = append([]string(nil), existing...)
	seen := make(map[string]bool, len(existing))
	for _, u := range existing {
		seen[u] = true
	}
	for _, u := range extra {
		if !seen[u] {
			seen[u] = true
			merged = append(merged, u)
			added++
		}
	}
	return merged, added
}
