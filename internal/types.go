package internal

import (
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/services/cache"
	"sjsage522/listingworker/services/export"
	"sjsage522/listingworker/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Fetcher   crawler.Fetcher
	Limiter   crawler.Limiter
	Publisher publisher.Publisher
	Exporter  *export.FileExporter
}

// NewSession creates a scrape session wired to the shared fetcher and limiter
func (d *Dependencies) NewSession(opts ...crawler.SessionOption) *crawler.Session {
	if d.Limiter != nil {
		opts = append([]crawler.SessionOption{crawler.WithLimiter(d.Limiter)}, opts...)
	}
	return crawler.NewSession(d.Fetcher, opts...)
}

// Close releases the services that hold connections
func (d *Dependencies) Close() error {
	if d.Publisher != nil {
		return d.Publisher.Close()
	}
	return nil
}
