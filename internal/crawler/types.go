package crawler

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"sjsage522/listingworker/pkg/errors"
)

// CurrencySuffix is the label appended to every reconstructed priceText
const CurrencySuffix = "CFA"

// RawListing represents one listing card extracted from a catalog page
type RawListing struct {
	ProductLabel string    `json:"productLabel"`
	PriceText    string    `json:"priceText"`
	PriceNumeric float64   `json:"priceNumeric"`
	Address      string    `json:"address"`
	ImageURL     string    `json:"imageUrl"`
	PageNumber   int       `json:"pageNumber"`
	ScrapedAt    time.Time `json:"scrapedAt"`
	SourceURL    string    `json:"sourceUrl"`
}

// ScrapeJob describes one session: which catalog, how many pages, how long to wait between them
type ScrapeJob struct {
	BaseURL        string
	PageCount      int
	InterPageDelay time.Duration
}

// Validate rejects jobs a session cannot run
func (j ScrapeJob) Validate() error {
	u, err := url.Parse(j.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidation("job", fmt.Sprintf("base URL %q is not absolute", j.BaseURL))
	}
	if j.PageCount < 1 {
		return errors.NewValidation("job", fmt.Sprintf("page count %d must be at least 1", j.PageCount))
	}
	if j.InterPageDelay < 0 {
		return errors.NewValidation("job", "inter-page delay must not be negative")
	}
	return nil
}

// Fetcher retrieves the markup of one catalog page
type Fetcher interface {
	// Fetch returns the UTF-8 markup of page, or a *errors.FetchError
	Fetch(ctx context.Context, baseURL string, page int) (io.Reader, error)
}

// Limiter gates the start of each page fetch
type Limiter interface {
	Wait(ctx context.Context) error
}

// Selectors contains CSS selectors for the listing card schema
type Selectors struct {
	Card        string
	Description string
	Price       string
	Location    string
	Image       string
	ImageAttr   string
}

// DefaultSelectors matches the CoinAfrique catalog markup
var DefaultSelectors = Selectors{
	Card:        "div.col.s6.m4.l3",
	Description: "p.ad__card-description a",
	Price:       "p.ad__card-price a",
	Location:    "p.ad__card-location span",
	Image:       "img.ad__card-img",
	ImageAttr:   "src",
}

// State is the position of a session in its page loop
type State int

const (
	StateIdle State = iota
	StateFetching
	StateExtracting
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}
