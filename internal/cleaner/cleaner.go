package cleaner

import (
	"strings"

	"sjsage522/listingworker/helpers"
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/logger"
)

// Cleaner turns a raw dataset into a cleaned one
type Cleaner struct {
	Buckets []BucketBound
	Rules   []CategoryRule
	log     *logger.Logger
}

// New creates a Cleaner with the default breakpoints and keyword table
func New() *Cleaner {
	return &Cleaner{
		Buckets: DefaultBuckets,
		Rules:   DefaultCategoryRules,
		log:     logger.ForCleaner(),
	}
}

// Clean drops listings without a positive price and derives city, price
// bucket and product category for the rest. Input order is kept.
func (c *Cleaner) Clean(raw []crawler.RawListing) []CleanedListing {
	cleaned := make([]CleanedListing, 0, len(raw))
	for _, r := range raw {
		if r.PriceNumeric <= 0 {
			continue
		}
		cleaned = append(cleaned, CleanedListing{
			RawListing:      r,
			City:            City(r.Address),
			PriceBucket:     c.Bucket(r.PriceNumeric),
			ProductCategory: c.Categorize(r.ProductLabel),
		})
	}

	if c.log != nil {
		c.log.Info().
			Int("raw", len(raw)).
			Int("cleaned", len(cleaned)).
			Int("dropped", len(raw)-len(cleaned)).
			Msg("Dataset cleaned")
	}
	return cleaned
}

// Clean runs the default Cleaner
func Clean(raw []crawler.RawListing) []CleanedListing {
	return New().Clean(raw)
}

// City returns the first comma-separated part of address, trimmed.
// An address without a comma is returned unchanged.
func City(address string) string {
	if !strings.Contains(address, ",") {
		return address
	}
	city, _ := helpers.GetSplitPart(address, ",", 0)
	return strings.TrimSpace(city)
}

// Bucket classifies a positive price; bounds are inclusive on the upper end
func (c *Cleaner) Bucket(price float64) PriceBucket {
	for _, b := range c.Buckets {
		if price <= b.Max {
			return b.Bucket
		}
	}
	return BucketVeryHigh
}

// Categorize matches label against the keyword table, case-insensitively
func (c *Cleaner) Categorize(label string) ProductCategory {
	lower := strings.ToLower(label)
	for _, rule := range c.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Category
			}
		}
	}
	return CategoryOther
}

// Raw projects cleaned listings back to their raw records
func Raw(cleaned []CleanedListing) []crawler.RawListing {
	raw := make([]crawler.RawListing, len(cleaned))
	for i, c := range cleaned {
		raw[i] = c.RawListing
	}
	return raw
}
