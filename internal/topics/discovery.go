package topics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/gopost/internal/logger"
)

const (
	// minTopicLength excludes trivially short feed titles.
	minTopicLength = 10
	// maxTopics caps the candidate list passed downstream.
	maxTopics = 50

	defaultFetchTimeout = 30 * time.Second
	userAgent           = "gopost/1.0 (+https://github.com/jonesrussell/gopost)"
)

// DefaultSources maps each niche to the RSS/Atom feeds its topics are
// discovered from.
var DefaultSources = map[string][]string{
	"Romance & Pig-Butchering Crypto Scams": {
		"https://www.fbi.gov/rss/news",
		"https://www.consumer.ftc.gov/blog/rss",
		"https://krebsonsecurity.com/feed/",
	},
	"AI-Driven & Deepfake Crypto Scams": {
		"https://techcrunch.com/tag/deepfake/feed/",
		"https://www.theverge.com/rss/ai-artificial-intelligence/index.xml",
	},
	"Crypto Scam Statistics & Big Numbers": {
		"https://cointelegraph.com/rss/tag/scam",
		"https://www.coindesk.com/arc/outboundfeeds/rss/",
	},
}

// Discoverer fetches candidate topic titles from a niche's feeds.
type Discoverer struct {
	client  *http.Client
	parser  *gofeed.Parser
	logger  logger.Logger
	sources map[string][]string
}

// NewDiscoverer creates a Discoverer over DefaultSources. A nil client
// gets a default with a request timeout.
func NewDiscoverer(client *http.Client, log logger.Logger) *Discoverer {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Discoverer{
		client:  client,
		parser:  gofeed.NewParser(),
		logger:  log,
		sources: DefaultSources,
	}
}

// WithSources overrides the niche-to-feed mapping; used by tests.
func (d *Discoverer) WithSources(sources map[string][]string) *Discoverer {
	d.sources = sources
	return d
}

// Discover returns a deduplicated, length-filtered list of candidate
// topic titles for the niche, in feed order, capped at maxTopics.
// Individual feed failures are logged and skipped.
func (d *Discoverer) Discover(ctx context.Context, niche string) ([]string, error) {
	feeds := d.sources[niche]
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no feed sources configured for niche %q", niche)
	}

	seen := make(map[string]struct{})
	topics := make([]string, 0, maxTopics)

	for _, url := range feeds {
		titles, err := d.fetchTitles(ctx, url)
		if err != nil {
			d.logger.Warn("feed fetch failed",
				logger.String("url", url),
				logger.Error(err),
			)
			continue
		}

		for _, title := range titles {
			title = strings.TrimSpace(title)
			if len(title) <= minTopicLength {
				continue
			}
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			topics = append(topics, title)
			if len(topics) >= maxTopics {
				return topics, nil
			}
		}
	}

	return topics, nil
}

// fetchTitles downloads and parses one feed, returning its item titles.
func (d *Discoverer) fetchTitles(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	parsed, err := d.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	titles := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Title != "" {
			titles = append(titles, item.Title)
		}
	}
	return titles, nil
}
