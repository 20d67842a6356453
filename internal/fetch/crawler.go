package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/DjordjeVuckovic/news-pulse/internal/domain"
)

const (
	defaultDaysBack     = 7
	defaultMaxPerSource = 20
	fetchTimeout        = 10 * time.Second
	userAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	minTitleLen         = 10
)

// Titles that are navigation chrome rather than stories.
var badTitles = []string{
	"News", "Company", "Product", "Safety", "Security", "Global Affairs",
	"Policy", "Research", "Learn More", "Next", "FEATURED", "The Latest",
	"More on the Cloud Blog", "Tag:", "Announcements", "Updates",
}

// Link selectors that usually point at articles on listing pages.
var articleLinkSelectors = []string{
	`a[href*="/blog/"]`, `a[href*="/news/"]`, `a[href*="/post/"]`,
	`a[href*="/article/"]`, "article a", ".post-title a", ".entry-title a",
}

// Selectors tried in order when extracting the main content of an article
// page.
var contentSelectors = []string{
	"article", ".post-content", ".entry-content", ".content",
	".article-body", ".story-body", "main", `[role="main"]`,
}

// Crawler fetches raw stories per source: RSS feeds first, HTML listing
// pages when feeds are missing or come up short.
type Crawler struct {
	registry     Registry
	daysBack     int
	maxPerSource int
	httpClient   *http.Client
	feedParser   *gofeed.Parser
	now          func() time.Time
}

var _ Fetcher = (*Crawler)(nil)

type CrawlerOption func(*Crawler)

func WithDaysBack(days int) CrawlerOption {
	return func(c *Crawler) {
		if days > 0 {
			c.daysBack = days
		}
	}
}

func WithMaxPerSource(n int) CrawlerOption {
	return func(c *Crawler) {
		if n > 0 {
			c.maxPerSource = n
		}
	}
}

func NewCrawler(registry Registry, opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		registry:     registry,
		daysBack:     defaultDaysBack,
		maxPerSource: defaultMaxPerSource,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		feedParser:   gofeed.NewParser(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.feedParser.UserAgent = userAgent
	return c
}

// Fetch crawls the requested sources and returns raw, unscored stories.
// A failing source is logged and skipped, it never fails the whole fetch.
func (c *Crawler) Fetch(ctx context.Context, sourceDomains []string) ([]domain.Story, error) {
	var all []domain.Story
	for _, d := range sourceDomains {
		source, ok := c.registry[d]
		if !ok {
			slog.Warn("Unknown source domain", "domain", d)
			continue
		}
		stories := c.crawlSource(ctx, source)
		slog.Info("Crawled source", "source", source.Name, "stories", len(stories))
		all = append(all, stories...)

		if err := ctx.Err(); err != nil {
			return all, err
		}
	}
	return all, nil
}

func (c *Crawler) crawlSource(ctx context.Context, source Source) []domain.Story {
	var stories []domain.Story

	for _, rssURL := range source.RSSURLs {
		feedStories, err := c.parseFeed(ctx, rssURL, source)
		if err != nil {
			slog.Warn("Failed to parse RSS feed", "url", rssURL, "error", err)
			continue
		}
		stories = append(stories, feedStories...)
		if len(stories) >= c.maxPerSource {
			break
		}
	}

	if len(stories) < c.maxPerSource {
		for _, pageURL := range source.FallbackURLs {
			htmlStories, err := c.scrapePage(ctx, pageURL, source)
			if err != nil {
				slog.Warn("Failed to scrape fallback page", "url", pageURL, "error", err)
				continue
			}
			stories = append(stories, htmlStories...)
			if len(stories) >= c.maxPerSource {
				break
			}
		}
	}

	if len(stories) > c.maxPerSource {
		stories = stories[:c.maxPerSource]
	}
	return stories
}

func (c *Crawler) parseFeed(ctx context.Context, rssURL string, source Source) ([]domain.Story, error) {
	feed, err := c.feedParser.ParseURLWithContext(rssURL, ctx)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().AddDate(0, 0, -c.daysBack)
	now := c.now()

	var stories []domain.Story
	for _, item := range feed.Items {
		published := itemPublished(item)
		if published.IsZero() || published.Before(cutoff) {
			continue
		}

		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if link == "" || title == "" {
			continue
		}
		if len(title) < minTitleLen || isBadTitle(title) {
			continue
		}

		description := strings.TrimSpace(item.Description)
		content := c.extractContent(ctx, link)
		if content == "" {
			content = description
		}

		stories = append(stories, domain.Story{
			ID:           domain.NewStoryID(published, source.Domain, link),
			CanonicalURL: link,
			Title:        title,
			Description:  description,
			Content:      content,
			PublishedAt:  published,
			FetchedAt:    now,
			SourceDomain: source.Domain,
			SourceName:   source.Name,
			IsCanonical:  true,
		})
	}
	return stories, nil
}

func (c *Crawler) scrapePage(ctx context.Context, pageURL string, source Source) ([]domain.Story, error) {
	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	links := extractArticleLinks(doc, pageURL, source.Domain)
	now := c.now()

	var stories []domain.Story
	for _, link := range links {
		if len(stories) >= c.maxPerSource {
			break
		}
		content := c.extractContent(ctx, link.url)
		if content == "" {
			continue
		}

		// Listing pages carry no dates, so scraped stories use fetch time.
		stories = append(stories, domain.Story{
			ID:           domain.NewStoryID(now, source.Domain, link.url),
			CanonicalURL: link.url,
			Title:        link.title,
			Content:      content,
			PublishedAt:  now,
			FetchedAt:    now,
			SourceDomain: source.Domain,
			SourceName:   source.Name,
			IsCanonical:  true,
		})
	}
	return stories, nil
}

// extractContent pulls the main text of an article page. Best effort: an
// unreachable or unparseable page yields an empty string.
func (c *Crawler) extractContent(ctx context.Context, articleURL string) string {
	doc, err := c.fetchDocument(ctx, articleURL)
	if err != nil {
		slog.Warn("Failed to extract content", "url", articleURL, "error", err)
		return ""
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return normalizeWhitespace(sel.Text())
		}
	}
	return normalizeWhitespace(doc.Find("body").Text())
}

func (c *Crawler) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

type articleLink struct {
	url   string
	title string
}

func extractArticleLinks(doc *goquery.Document, baseURL, sourceDomain string) []articleLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []articleLink

	for _, selector := range articleLinkSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			title := strings.TrimSpace(sel.Text())
			if !ok || href == "" || title == "" {
				return
			}
			if len(title) < minTitleLen || isBadTitle(title) {
				return
			}

			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			full := base.ResolveReference(ref).String()

			if !strings.Contains(full, sourceDomain) {
				return
			}
			if _, dup := seen[full]; dup {
				return
			}
			seen[full] = struct{}{}
			links = append(links, articleLink{url: full, title: title})
		})
	}
	return links
}

func itemPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func isBadTitle(title string) bool {
	for _, bad := range badTitles {
		if strings.Contains(title, bad) {
			return true
		}
	}
	return false
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
