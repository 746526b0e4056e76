package cleaner

import "sjsage522/listingworker/internal/crawler"

// PriceBucket is the ordinal price range of a listing
type PriceBucket string

const (
	BucketVeryLow  PriceBucket = "VeryLow"
	BucketLow      PriceBucket = "Low"
	BucketMedium   PriceBucket = "Medium"
	BucketHigh     PriceBucket = "High"
	BucketVeryHigh PriceBucket = "VeryHigh"
)

// ProductCategory is the coarse product family of a listing
type ProductCategory string

const (
	CategoryTops    ProductCategory = "Tops"
	CategoryBottoms ProductCategory = "Bottoms"
	CategoryShoes   ProductCategory = "Shoes"
	CategorySuits   ProductCategory = "Suits"
	CategoryOther   ProductCategory = "Other"
)

// CleanedListing is a RawListing with a known price and derived attributes
type CleanedListing struct {
	crawler.RawListing
	City            string          `json:"city"`
	PriceBucket     PriceBucket     `json:"priceBucket"`
	ProductCategory ProductCategory `json:"productCategory"`
}

// BucketBound is the inclusive upper bound of a bucket
type BucketBound struct {
	Max    float64
	Bucket PriceBucket
}

// CategoryRule maps keywords to a category
type CategoryRule struct {
	Category ProductCategory
	Keywords []string
}

// DefaultBuckets are the fixed price breakpoints; anything above the last bound is VeryHigh
var DefaultBuckets = []BucketBound{
	{Max: 5000, Bucket: BucketVeryLow},
	{Max: 10000, Bucket: BucketLow},
	{Max: 20000, Bucket: BucketMedium},
	{Max: 50000, Bucket: BucketHigh},
}

// DefaultCategoryRules is checked in order; the first rule with a matching keyword wins
var DefaultCategoryRules = []CategoryRule{
	{Category: CategoryTops, Keywords: []string{"chemise", "t-shirt", "polo"}},
	{Category: CategoryBottoms, Keywords: []string{"pantalon", "jean", "short"}},
	{Category: CategoryShoes, Keywords: []string{"chaussure", "basket", "sandale"}},
	{Category: CategorySuits, Keywords: []string{"costume", "complet"}},
}
