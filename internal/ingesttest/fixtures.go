package ingesttest

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/dedup"
	"github.com/zyrak/simdoc/internal/ratelimit"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// FixtureFetcher pulls real-world article text from RSS feeds to
// supplement the canned scenario strings, the way the teacher's
// cmd/worker-rss pulls live content — rate-limited and deduplicated across
// repeated integration-test runs so the same URL isn't re-submitted every
// time the suite runs against a long-lived Redis instance.
type FixtureFetcher struct {
	httpClient *http.Client
	checker    *dedup.Checker
}

// NewFixtureFetcher builds a fetcher. rdb may be nil, in which case every
// URL is treated as new (no cross-run dedup).
func NewFixtureFetcher(rdb *redis.Client, limiter *ratelimit.Limiter, timeout time.Duration) *FixtureFetcher {
	f := &FixtureFetcher{httpClient: ratelimit.NewHTTPClient(limiter, timeout)}
	if rdb != nil {
		f.checker = dedup.NewChecker(rdb)
	}
	return f
}

// Fetch pulls up to limit not-previously-seen articles from feedURL,
// extracting readable text via go-readability and falling back to the
// feed's own description when extraction fails.
func (f *FixtureFetcher) Fetch(ctx context.Context, feedURL string, limit int) ([]ArticleFixture, error) {
	parser := gofeed.NewParser()
	parser.Client = f.httpClient

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	var out []ArticleFixture
	for _, item := range feed.Items {
		if len(out) >= limit {
			break
		}

		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		if f.checker != nil {
			isNew, err := f.checker.IsNew(ctx, link)
			if err != nil {
				log.WithError(err).Warn("dedup check failed, treating URL as new")
			} else if !isNew {
				continue
			}
		}

		content := f.extractContent(ctx, link)
		if content == "" {
			content = cleanText(item.Description)
		}
		if content == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = link
		}

		out = append(out, ArticleFixture{
			ArticleID:   dedup.HashURL(link)[:16],
			Title:       title,
			Content:     content,
			PublishTime: publishedOrNow(item),
			Source:      feedURL,
		})
	}

	return out, nil
}

func (f *FixtureFetcher) extractContent(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return ""
	}
	return cleanText(article.TextContent)
}

func cleanText(raw string) string {
	raw = htmlTagPattern.ReplaceAllString(raw, " ")
	raw = html.UnescapeString(raw)
	return strings.TrimSpace(strings.Join(strings.Fields(raw), " "))
}

func publishedOrNow(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	return time.Now().UTC()
}
