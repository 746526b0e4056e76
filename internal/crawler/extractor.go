package crawler

import (
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/listingworker/helpers"
)

// Extractor turns listing cards into RawListings
type Extractor struct {
	Selectors Selectors
	SourceURL string
}

// NewExtractor creates an extractor for cards scraped from sourceURL
func NewExtractor(selectors Selectors, sourceURL string) *Extractor {
	if selectors.ImageAttr == "" {
		selectors.ImageAttr = "src"
	}
	return &Extractor{Selectors: selectors, SourceURL: sourceURL}
}

// createDocument parses page markup into a goquery document
func createDocument(reader io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(reader)
}

// first returns the first descendant of s matching selector, if any
func first(s *goquery.Selection, selector string) (*goquery.Selection, bool) {
	if selector == "" {
		return nil, false
	}
	sel := s.Find(selector).First()
	return sel, sel.Length() > 0
}

// textOf returns the trimmed text of the first match
func textOf(s *goquery.Selection, selector string) (string, bool) {
	sel, ok := first(s, selector)
	if !ok {
		return "", false
	}
	return helpers.CollapseSpaces(sel.Text()), true
}

// attrOf returns the value of attr on the first match
func attrOf(s *goquery.Selection, selector, attr string) (string, bool) {
	sel, ok := first(s, selector)
	if !ok {
		return "", false
	}
	value, exists := sel.Attr(attr)
	if !exists {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// Extract builds a RawListing from one card. It reports false when any
// required node is missing; such cards are skipped, never half filled.
func (e *Extractor) Extract(card *goquery.Selection, page int, at time.Time) (RawListing, bool) {
	label, ok := textOf(card, e.Selectors.Description)
	if !ok {
		return RawListing{}, false
	}

	priceRaw, ok := textOf(card, e.Selectors.Price)
	if !ok {
		return RawListing{}, false
	}

	address, ok := textOf(card, e.Selectors.Location)
	if !ok {
		return RawListing{}, false
	}

	image, ok := attrOf(card, e.Selectors.Image, e.Selectors.ImageAttr)
	if !ok {
		return RawListing{}, false
	}

	return RawListing{
		ProductLabel: label,
		PriceText:    FormatPriceText(priceRaw),
		PriceNumeric: ParsePrice(priceRaw),
		Address:      address,
		ImageURL:     image,
		PageNumber:   page,
		ScrapedAt:    at,
		SourceURL:    e.SourceURL,
	}, true
}

// ExtractPage walks every card of doc in document order and returns the
// listings that could be fully extracted, plus the number of skipped cards
func (e *Extractor) ExtractPage(doc *goquery.Document, page int, at time.Time) ([]RawListing, int) {
	cards := doc.Find(e.Selectors.Card)
	listings := make([]RawListing, 0, cards.Length())
	skipped := 0

	cards.Each(func(_ int, card *goquery.Selection) {
		listing, ok := e.Extract(card, page, at)
		if !ok {
			skipped++
			return
		}
		listings = append(listings, listing)
	})

	return listings, skipped
}
