package main

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/listingworker/config"
	"sjsage522/listingworker/internal"
	"sjsage522/listingworker/internal/cleaner"
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/services/cache"
	"sjsage522/listingworker/services/export"
	"sjsage522/listingworker/services/publisher"
	"sjsage522/listingworker/services/worker"
)

// catalogCard mimics one CoinAfrique listing card
const catalogCard = `
<div class="col s6 m4 l3">
  <div class="card ad__card">
    <a href="/annonce/%[1]d"><img class="ad__card-img" src="https://images.coinafrique.com/%[1]d.jpg"></a>
    <p class="ad__card-description"><a href="/annonce/%[1]d">%[2]s</a></p>
    <p class="ad__card-price"><a href="/annonce/%[1]d">%[3]s</a></p>
    <p class="ad__card-location"><span>%[4]s</span></p>
  </div>
</div>`

type testCard struct {
	label, price, location string
}

var catalogPages = map[string][]testCard{
	"1": {
		{"Chemise wax manches longues", "7 500 CFA", "Dakar, Sénégal"},
		{"Jean slim bleu", "12 000 FCFA", "Thiès, Sénégal"},
		{"Lot de vêtements", "Prix sur demande", "Dakar, Sénégal"},
	},
	"2": {
		{"Costume 3 pièces", "85 000 CFA", "Saint-Louis, Sénégal"},
		{"Basket Nike Air", "30 000 CFA", "Dakar, Sénégal"},
	},
}

func newTestCatalog(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cards, ok := catalogPages[r.URL.Query().Get("page")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var b strings.Builder
		b.WriteString(`<html><head><meta charset="utf-8"></head><body><div class="row adcards">`)
		for i, c := range cards {
			fmt.Fprintf(&b, catalogCard, i+1, c.label, c.price, c.location)
		}
		b.WriteString(`</div></body></html>`)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, b.String())
	}))
	t.Cleanup(server.Close)
	return server
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func TestPipelineEndToEnd(t *testing.T) {
	server := newTestCatalog(t)
	dir := t.TempDir()

	deps := &internal.Dependencies{
		Cache:    cache.NewMemoryCache(),
		Exporter: export.NewFileExporter(dir, []string{"csv", "json"}),
	}
	deps.Fetcher = crawler.NewPageFetcher(2*time.Second, deps.Cache, time.Minute)

	session := deps.NewSession(crawler.WithSleep(noSleep))
	raw, err := session.Run(context.Background(), crawler.ScrapeJob{BaseURL: server.URL + "/categorie/vetements-homme/", PageCount: 2})
	require.NoError(t, err)
	require.Len(t, raw, 5)

	assert.Equal(t, "Chemise wax manches longues", raw[0].ProductLabel)
	assert.Equal(t, "7 500 CFA", raw[0].PriceText)
	assert.Equal(t, 7500.0, raw[0].PriceNumeric)
	assert.Equal(t, 12000.0, raw[1].PriceNumeric)
	assert.Equal(t, 0.0, raw[2].PriceNumeric)
	assert.Equal(t, 2, raw[4].PageNumber)

	cleaned := cleaner.Clean(raw)
	require.Len(t, cleaned, 4)
	assert.Equal(t, cleaner.CategoryTops, cleaned[0].ProductCategory)
	assert.Equal(t, cleaner.CategoryBottoms, cleaned[1].ProductCategory)
	assert.Equal(t, cleaner.CategorySuits, cleaned[2].ProductCategory)
	assert.Equal(t, cleaner.CategoryShoes, cleaned[3].ProductCategory)
	assert.Equal(t, "Saint-Louis", cleaned[2].City)
	assert.Equal(t, cleaner.BucketVeryHigh, cleaned[2].PriceBucket)

	summary := cleaner.Summarize(cleaned)
	assert.Equal(t, 4, summary.Listings)
	assert.Equal(t, 7500.0, summary.MinPrice)
	assert.Equal(t, 85000.0, summary.MaxPrice)
	require.NotEmpty(t, summary.TopCities)
	assert.Equal(t, cleaner.Count{Label: "Dakar", Count: 2}, summary.TopCities[0])

	paths, err := deps.Exporter.Export("Vêtements Homme", raw, cleaned)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	f, err := os.Open(paths[1])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 5, "header plus four cleaned rows")
	assert.Equal(t, export.CleanedColumns, rows[0])

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(paths[2])))
	require.NoError(t, err)
	var decoded []crawler.RawListing
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 5)
}

func TestPipelinePartialOnMissingPage(t *testing.T) {
	server := newTestCatalog(t)
	fetcher := crawler.NewPageFetcher(2*time.Second, cache.NewMemoryCache(), time.Minute)

	w := worker.NewWorker(context.Background(), []worker.Target{{
		Category: crawler.Category{Name: "Vêtements Homme", URL: server.URL},
		Job:      crawler.ScrapeJob{BaseURL: server.URL, PageCount: 3},
	}}, func() *crawler.Session {
		return crawler.NewSession(fetcher, crawler.WithSleep(noSleep))
	}, nil, nil, 0)

	results := w.RunOnce()
	require.Len(t, results, 1)
	assert.False(t, results[0].Completed())
	assert.Len(t, results[0].Raw, 5, "pages 1 and 2 are kept when page 3 fails")
	assert.Contains(t, results[0].Err.Error(), "unexpected status code: 404")
}

func TestBuildTargets(t *testing.T) {
	defaults := crawler.ScrapeJob{PageCount: 3, InterPageDelay: 2 * time.Second}

	cfg := &config.Config{Category: "Personnalisé", BaseURL: "https://sn.coinafrique.com/categorie/montres"}
	targets, err := buildTargets(cfg, crawler.DefaultCategories, defaults)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "https://sn.coinafrique.com/categorie/montres", targets[0].Job.BaseURL)
	assert.Equal(t, 3, targets[0].Job.PageCount)

	cfg = &config.Config{Category: "Informatique"}
	targets, err = buildTargets(cfg, crawler.DefaultCategories, defaults)
	require.NoError(t, err)
	assert.Equal(t, "https://sn.coinafrique.com/categorie/ordinateurs", targets[0].Job.BaseURL)
}

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestPipelinePublishesToRedis(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("Skipping integration test in CI environment")
	}

	ctx := context.Background()
	redisAddr := "localhost:6379"
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	pub := publisher.NewRedisPublisher(redisAddr, 0, "test_listing_pipeline", 1, 100)
	defer pub.Close()
	stream := pub.StreamName(0)
	redisClient.Del(ctx, stream)
	defer redisClient.Del(ctx, stream)

	server := newTestCatalog(t)
	fetcher := crawler.NewPageFetcher(2*time.Second, cache.NewMemoryCache(), time.Minute)
	w := worker.NewWorker(ctx, []worker.Target{{
		Category: crawler.Category{Name: "homme", URL: server.URL},
		Job:      crawler.ScrapeJob{BaseURL: server.URL, PageCount: 2},
	}}, func() *crawler.Session {
		return crawler.NewSession(fetcher, crawler.WithSleep(noSleep))
	}, pub, nil, 0)

	results := w.RunOnce()
	require.NoError(t, results[0].Err)

	messages, err := redisClient.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 4)

	encoded, ok := messages[0].Values["homme"].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var listing cleaner.CleanedListing
	require.NoError(t, json.Unmarshal(decoded, &listing))
	assert.Equal(t, "Chemise wax manches longues", listing.ProductLabel)
	assert.Equal(t, "Dakar", listing.City)
}

func TestUnreachableCategoryStaysSelected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/a") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()

	registry := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(fmt.Sprintf(
		"categories:\n  - name: A\n    url: %s/a\n  - name: B\n    url: %s/b\n", server.URL, server.URL)), 0o644))

	cfg := &config.Config{Category: "A", CategoriesFile: registry, ProbeTimeout: time.Second}
	categories, checks, err := resolveCategories(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, categories, 2, "the full registry is kept")
	require.Len(t, checks, 2)
	assert.False(t, checks[0].Available)
	assert.True(t, checks[1].Available)

	targets, err := buildTargets(cfg, categories, crawler.ScrapeJob{PageCount: 1})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, server.URL+"/a", targets[0].Job.BaseURL)
	assert.Equal(t, []string{"A"}, unavailableTargets(targets, checks))

	cfg.Category = "B"
	targets, err = buildTargets(cfg, categories, crawler.ScrapeJob{PageCount: 1})
	require.NoError(t, err)
	assert.Empty(t, unavailableTargets(targets, checks))
}
