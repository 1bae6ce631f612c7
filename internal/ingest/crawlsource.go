package ingest

import (
	"context"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// CrawlSource discovers pages from an external PageProducer (a crawler
// outside this package's scope — this module only consumes fetched pages,
// never performs HTTP crawling itself) and maps them into the same
// path->content shape a local or git source produces, keyed by URL.
type CrawlSource struct {
	producer PageProducer
}

// NewCrawlSource wraps a PageProducer.
func NewCrawlSource(producer PageProducer) *CrawlSource {
	return &CrawlSource{producer: producer}
}

// Discover drains every page the producer yields for opts.RootPath (treated
// as the crawl seed URL) into memory.
func (c *CrawlSource) Discover(ctx context.Context, opts Options) (map[string][]byte, error) {
	if c.producer == nil {
		return nil, coreerrors.New(coreerrors.KindInternal, "crawl source has no page producer configured")
	}
	pages, err := c.producer.Pages(ctx, opts.RootPath)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "start page crawl", err)
	}

	out := make(map[string][]byte)
	for {
		select {
		case <-ctx.Done():
			return nil, coreerrors.Wrap(coreerrors.KindCancelled, "crawl cancelled", ctx.Err())
		case page, ok := <-pages:
			if !ok {
				return out, nil
			}
			out[page.URL] = page.Content
		}
	}
}
