package crawler

import (
	"regexp"
	"strconv"
	"strings"

	"sjsage522/listingworker/helpers"
)

var (
	// currency markers are only recognised before or after the amount
	currencyRegex = regexp.MustCompile(`(?i)^\s*(f\s*cfa|cfa|xof)|(f\s*cfa|cfa|xof)\s*$`)
	numberRegex   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// NormalizePriceText strips currency markers and surrounding whitespace,
// keeping the separators the page displays
func NormalizePriceText(raw string) string {
	return helpers.CollapseSpaces(currencyRegex.ReplaceAllString(raw, " "))
}

// ParsePrice converts a displayed price into a number.
// Unparseable text yields 0, which means unknown price.
func ParsePrice(raw string) float64 {
	s := NormalizePriceText(raw)
	s = strings.NewReplacer(" ", "", ",", "").Replace(s)

	if !numberRegex.MatchString(s) {
		return 0
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return price
}

// FormatPriceText rebuilds the priceText field from the page text
func FormatPriceText(raw string) string {
	return NormalizePriceText(raw) + " " + CurrencySuffix
}
