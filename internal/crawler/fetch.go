package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sjsage522/listingworker/helpers"
	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/pkg/errors"
	"sjsage522/listingworker/services/cache"
)

// PageQueryParam is the query parameter carrying the 1-based page index
const PageQueryParam = "page"

// PageFetcher retrieves catalog pages over HTTP. When a cache is set, a
// rate-limited response blocks the host for BlockTime across sessions.
type PageFetcher struct {
	Client    *http.Client
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	log       *logger.Logger
}

// NewPageFetcher creates a fetcher with a bounded request timeout
func NewPageFetcher(timeout time.Duration, cacheSvc cache.CacheService, blockTime time.Duration) *PageFetcher {
	return &PageFetcher{
		Client:    helpers.NewClient(timeout),
		CacheSvc:  cacheSvc,
		BlockTime: blockTime,
		log:       logger.ForFetcher(),
	}
}

// PageURL appends the page query parameter to baseURL, keeping any existing query
func PageURL(baseURL string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	q := u.Query()
	q.Set(PageQueryParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func blockKey(host string) string {
	return "listing_rate_limited:" + host
}

// Fetch returns the UTF-8 markup of one page. It never retries; every
// failure comes back as *errors.FetchError tagged with page.
func (f *PageFetcher) Fetch(ctx context.Context, baseURL string, page int) (io.Reader, error) {
	pageURL, err := PageURL(baseURL, page)
	if err != nil {
		return nil, errors.NewNetwork(page, baseURL, err)
	}
	u, _ := url.Parse(pageURL)

	if f.blocked(u.Host) {
		return nil, errors.NewRateLimit(page, pageURL, 0, f.BlockTime)
	}

	body, err := helpers.FetchWithBrowserHeaders(ctx, f.Client, pageURL)
	if err == nil {
		f.log.Debug().Int("page", page).Str("url", pageURL).Msg("Page fetched")
		return body, nil
	}

	var statusErr *helpers.StatusError
	if stderrors.As(err, &statusErr) {
		if statusErr.RateLimited() {
			f.block(u.Host)
			return nil, errors.NewRateLimit(page, pageURL, statusErr.StatusCode, f.BlockTime)
		}
		return nil, errors.NewStatus(page, pageURL, statusErr.StatusCode)
	}
	return nil, errors.NewNetwork(page, pageURL, err)
}

func (f *PageFetcher) blocked(host string) bool {
	if f.CacheSvc == nil {
		return false
	}
	_, err := f.CacheSvc.Get(blockKey(host))
	return err == nil
}

func (f *PageFetcher) block(host string) {
	if f.CacheSvc == nil || f.BlockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(f.BlockTime / time.Second)))
	if err := f.CacheSvc.Set(blockKey(host), value, f.BlockTime); err != nil {
		f.log.Warn().Err(err).Str("host", host).Msg("Failed to record rate limit block")
		return
	}
	f.log.Warn().Str("host", host).Dur("block", f.BlockTime).Msg("Host rate limited, blocking further requests")
}
