package crawler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"sjsage522/listingworker/helpers"
)

// Category is one catalog section that can be scraped
type Category struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// DefaultCategories is the static CoinAfrique registry
var DefaultCategories = []Category{
	{Name: "Vêtements Homme", URL: "https://sn.coinafrique.com/categorie/vetements-homme/"},
	{Name: "Chaussures Homme", URL: "https://sn.coinafrique.com/categorie/chaussures-homme/"},
	{Name: "Vêtements Enfants", URL: "https://sn.coinafrique.com/categorie/vetements-enfants/"},
	{Name: "Chaussures Enfants", URL: "https://sn.coinafrique.com/categorie/chaussures-enfants/"},
	{Name: "Électronique", URL: "https://sn.coinafrique.com/categorie/telephones"},
	{Name: "Informatique", URL: "https://sn.coinafrique.com/categorie/ordinateurs"},
}

type categoryFile struct {
	Categories []Category `yaml:"categories"`
}

// LoadCategories reads a YAML registry of the form
//
//	categories:
//	  - name: Vêtements Homme
//	    url: https://sn.coinafrique.com/categorie/vetements-homme/
//
// An empty path returns DefaultCategories.
func LoadCategories(path string) ([]Category, error) {
	if path == "" {
		return append([]Category(nil), DefaultCategories...), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories %s: %w", path, err)
	}

	var file categoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("categories %s: no categories defined", path)
	}
	for i, c := range file.Categories {
		if c.Name == "" || c.URL == "" {
			return nil, fmt.Errorf("categories %s: entry %d needs name and url", path, i)
		}
	}
	return file.Categories, nil
}

// FindCategory looks a category up by name
func FindCategory(categories []Category, name string) (Category, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// ProbeResult is the reachability of one category
type ProbeResult struct {
	Category
	Available  bool   `json:"available"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProbeCategories checks every category URL concurrently. Any request
// error or non-200 status marks the category unavailable. Results keep
// the registry order.
func ProbeCategories(ctx context.Context, categories []Category, timeout time.Duration) []ProbeResult {
	client := helpers.NewClient(timeout)
	results := make([]ProbeResult, len(categories))

	var wg sync.WaitGroup
	for i, c := range categories {
		wg.Add(1)
		go func(i int, c Category) {
			defer wg.Done()
			r := ProbeResult{Category: c}
			status, err := helpers.FetchStatus(ctx, client, c.URL)
			switch {
			case err != nil:
				r.Error = err.Error()
			case status != http.StatusOK:
				r.StatusCode = status
			default:
				r.StatusCode = status
				r.Available = true
			}
			results[i] = r
		}(i, c)
	}
	wg.Wait()

	return results
}

// AvailableCategories returns the categories that answered the probe. If
// none did, the full unverified list is returned so nothing is hidden.
func AvailableCategories(results []ProbeResult) []Category {
	var available []Category
	for _, r := range results {
		if r.Available {
			available = append(available, r.Category)
		}
	}
	if len(available) > 0 {
		return available
	}

	all := make([]Category, len(results))
	for i, r := range results {
		all[i] = r.Category
	}
	return all
}
