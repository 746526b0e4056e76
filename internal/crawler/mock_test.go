package crawler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// mockFetcher serves canned pages and records which pages were requested
type mockFetcher struct {
	mu      sync.Mutex
	pages   map[int]string
	errs    map[int]error
	fetched []int
}

func (m *mockFetcher) Fetch(_ context.Context, _ string, page int) (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, page)
	if err, ok := m.errs[page]; ok {
		return nil, err
	}
	return strings.NewReader(m.pages[page]), nil
}

// card renders one CoinAfrique listing card; empty fields are left out of the markup
func card(label, price, location, image string) string {
	var b strings.Builder
	b.WriteString(`<div class="col s6 m4 l3"><div class="card ad__card">`)
	if image != "" {
		fmt.Fprintf(&b, `<a href="/annonce/x"><img class="ad__card-img" src="%s"></a>`, image)
	}
	if label != "" {
		fmt.Fprintf(&b, `<p class="ad__card-description"><a href="/annonce/x">%s</a></p>`, label)
	}
	if price != "" {
		fmt.Fprintf(&b, `<p class="ad__card-price"><a href="/annonce/x">%s</a></p>`, price)
	}
	if location != "" {
		fmt.Fprintf(&b, `<p class="ad__card-location"><span>%s</span></p>`, location)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func page(cards ...string) string {
	return `<html><body><div class="row adcards">` + strings.Join(cards, "\n") + `</div></body></html>`
}
