package cleaner

import "sort"

// Count is a label with the number of listings carrying it
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary holds the headline numbers of a cleaned dataset
type Summary struct {
	Listings   int     `json:"listings"`
	MeanPrice  float64 `json:"meanPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
	TopCities  []Count `json:"topCities"`
	Categories []Count `json:"categories"`
	Buckets    []Count `json:"buckets"`
}

// TopCityLimit caps Summary.TopCities
const TopCityLimit = 10

// Summarize computes price statistics and label counts. Counts are sorted
// by descending count, then label.
func Summarize(cleaned []CleanedListing) Summary {
	s := Summary{Listings: len(cleaned)}
	if len(cleaned) == 0 {
		return s
	}

	cities := map[string]int{}
	categories := map[string]int{}
	buckets := map[string]int{}
	total := 0.0
	s.MinPrice = cleaned[0].PriceNumeric
	s.MaxPrice = cleaned[0].PriceNumeric

	for _, c := range cleaned {
		total += c.PriceNumeric
		if c.PriceNumeric < s.MinPrice {
			s.MinPrice = c.PriceNumeric
		}
		if c.PriceNumeric > s.MaxPrice {
			s.MaxPrice = c.PriceNumeric
		}
		cities[c.City]++
		categories[string(c.ProductCategory)]++
		buckets[string(c.PriceBucket)]++
	}

	s.MeanPrice = total / float64(len(cleaned))
	s.TopCities = sortedCounts(cities)
	if len(s.TopCities) > TopCityLimit {
		s.TopCities = s.TopCities[:TopCityLimit]
	}
	s.Categories = sortedCounts(categories)
	s.Buckets = sortedCounts(buckets)
	return s
}

func sortedCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for label, n := range m {
		counts = append(counts, Count{Label: label, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Label < counts[j].Label
	})
	return counts
}
