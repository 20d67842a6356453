package fetch

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Source describes one news provider: RSS feeds to try first, fallback pages
// to scrape when feeds are missing or thin.
type Source struct {
	Domain       string   `yaml:"domain" json:"domain"`
	Name         string   `yaml:"name" json:"name"`
	RSSURLs      []string `yaml:"rssUrls" json:"rss_urls"`
	FallbackURLs []string `yaml:"fallbackUrls" json:"fallback_urls"`
}

// Registry maps source domains to their definitions.
type Registry map[string]Source

// DefaultRegistry returns the built-in source set.
func DefaultRegistry() Registry {
	sources := []Source{
		{
			Domain:       "openai.com",
			Name:         "OpenAI",
			RSSURLs:      []string{"https://openai.com/news/rss.xml"},
			FallbackURLs: []string{"https://openai.com/news"},
		},
		{
			Domain:       "anthropic.com",
			Name:         "Anthropic",
			FallbackURLs: []string{"https://www.anthropic.com/news"},
		},
		{
			Domain:       "microsoft.com",
			Name:         "Microsoft AI",
			RSSURLs:      []string{"https://blogs.microsoft.com/ai/feed/"},
			FallbackURLs: []string{"https://blogs.microsoft.com/ai/"},
		},
		{
			Domain:       "google.com",
			Name:         "Google AI",
			RSSURLs:      []string{"https://blog.google/technology/ai/rss/"},
			FallbackURLs: []string{"https://blog.google/technology/ai/"},
		},
		{
			Domain:       "meta.com",
			Name:         "Meta AI",
			RSSURLs:      []string{"https://ai.meta.com/blog/rss/"},
			FallbackURLs: []string{"https://ai.meta.com/blog/"},
		},
		{
			Domain:       "technologyreview.com",
			Name:         "MIT Technology Review",
			RSSURLs:      []string{"https://www.technologyreview.com/topicai/feed/"},
			FallbackURLs: []string{"https://www.technologyreview.com/topic/artificial-intelligence/"},
		},
		{
			Domain:       "techcrunch.com",
			Name:         "TechCrunch AI",
			RSSURLs:      []string{"https://techcrunch.com/category/artificial-intelligence/feed/"},
			FallbackURLs: []string{"https://techcrunch.com/category/artificial-intelligence/"},
		},
		{
			Domain:       "venturebeat.com",
			Name:         "VentureBeat AI",
			RSSURLs:      []string{"https://venturebeat.com/ai/feed/"},
			FallbackURLs: []string{"https://venturebeat.com/ai/"},
		},
		{
			Domain:       "theverge.com",
			Name:         "The Verge AI",
			RSSURLs:      []string{"https://www.theverge.com/ai-artificial-intelligence/rss/index.xml"},
			FallbackURLs: []string{"https://www.theverge.com/ai-artificial-intelligence"},
		},
		{
			Domain:       "marketingaiinstitute.com",
			Name:         "Marketing AI Institute",
			RSSURLs:      []string{"https://www.marketingaiinstitute.com/feed"},
			FallbackURLs: []string{"https://www.marketingaiinstitute.com/blog"},
		},
	}

	reg := make(Registry, len(sources))
	for _, s := range sources {
		reg[s.Domain] = s
	}
	return reg
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadRegistry merges a YAML sources file (if path is non-empty) over the
// built-in registry. Custom sources extend or override defaults per domain.
func LoadRegistry(path string) (Registry, error) {
	reg := DefaultRegistry()
	if path == "" {
		return reg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var parsed sourcesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	for _, s := range parsed.Sources {
		if s.Domain == "" {
			continue
		}
		if s.Name == "" {
			s.Name = s.Domain
		}
		reg[s.Domain] = s
	}
	return reg, nil
}

// Domains lists the registry's domains.
func (r Registry) Domains() []string {
	out := make([]string, 0, len(r))
	for d := range r {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
