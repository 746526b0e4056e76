package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"time"

	"sjsage522/listingworker/internal"
	"sjsage522/listingworker/internal/cleaner"
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/pkg/errors"
)

const (
	// MaxPages caps the page count a single request may ask for
	MaxPages = 20
	// MaxDelay caps the inter-page delay a single request may ask for
	MaxDelay = time.Minute
	// scrapeSlack covers extraction, limiter waits and encoding
	scrapeSlack = 30 * time.Second
)

// Handlers serves the scrape pipeline over HTTP
type Handlers struct {
	deps         *internal.Dependencies
	categories   []crawler.Category
	probeTimeout time.Duration
	fetchTimeout time.Duration
	defaults     crawler.ScrapeJob
	cleaner      *cleaner.Cleaner
	log          *logger.Logger

	// budget bounds the run time of one scrape request
	budget func(crawler.ScrapeJob) time.Duration
}

// NewHandlers creates handlers; defaults supplies page count and delay
// for requests that leave them out
func NewHandlers(
	deps *internal.Dependencies,
	categories []crawler.Category,
	probeTimeout time.Duration,
	fetchTimeout time.Duration,
	defaults crawler.ScrapeJob,
) *Handlers {
	h := &Handlers{
		deps:         deps,
		categories:   categories,
		probeTimeout: probeTimeout,
		fetchTimeout: fetchTimeout,
		defaults:     defaults,
		cleaner:      cleaner.New(),
		log:          logger.ForAPI(),
	}
	h.budget = h.scrapeBudget
	return h
}

// scrapeBudget is the longest a job can take: every page fetch timing out
// plus every inter-page delay
func (h *Handlers) scrapeBudget(job crawler.ScrapeJob) time.Duration {
	pages := time.Duration(job.PageCount)
	return pages*h.fetchTimeout + (pages-1)*job.InterPageDelay + scrapeSlack
}

// MaxScrapeDuration is the budget of the largest job a request may ask for
func (h *Handlers) MaxScrapeDuration() time.Duration {
	return h.scrapeBudget(crawler.ScrapeJob{PageCount: MaxPages, InterPageDelay: MaxDelay})
}

// CategoriesResponse is the category liveness report
type CategoriesResponse struct {
	Categories []crawler.ProbeResult `json:"categories"`
	Available  []crawler.Category    `json:"available"`
}

// ScrapeRequest selects a catalog by category name or by URL
type ScrapeRequest struct {
	Category     string   `json:"category"`
	URL          string   `json:"url"`
	Pages        int      `json:"pages"`
	DelaySeconds *float64 `json:"delaySeconds"`
	Export       bool     `json:"export"`
}

// ScrapeError describes the page failure that ended a session
type ScrapeError struct {
	Type       string `json:"type"`
	Page       int    `json:"page"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
}

// ScrapeResponse carries the datasets of one session
type ScrapeResponse struct {
	SessionID string                   `json:"sessionId"`
	URL       string                   `json:"url"`
	Completed bool                     `json:"completed"`
	Raw       []crawler.RawListing     `json:"raw"`
	Cleaned   []cleaner.CleanedListing `json:"cleaned"`
	Summary   cleaner.Summary          `json:"summary"`
	Files     []string                 `json:"files,omitempty"`
	Error     *ScrapeError             `json:"error,omitempty"`
}

// Health reports that the server is up
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCategories probes every category and reports which ones answer
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	results := crawler.ProbeCategories(r.Context(), h.categories, h.probeTimeout)
	h.respondJSON(w, http.StatusOK, CategoriesResponse{
		Categories: results,
		Available:  crawler.AvailableCategories(results),
	})
}

// Scrape runs one session and returns raw and cleaned listings. A page
// failure still answers 200 with the partial datasets and the error.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobFor(req)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// past the budget the session stops before its next page and the
	// response reports a canceled error
	ctx, cancel := context.WithTimeout(r.Context(), h.budget(job))
	defer cancel()

	session := h.deps.NewSession()
	raw, err := session.Run(ctx, job)

	resp := ScrapeResponse{
		SessionID: session.ID,
		URL:       job.BaseURL,
		Completed: err == nil,
		Raw:       nonNilRaw(raw),
	}

	if err != nil {
		var fetchErr *errors.FetchError
		if !stderrors.As(err, &fetchErr) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp.Error = &ScrapeError{
			Type:       string(fetchErr.Type),
			Page:       fetchErr.Page,
			StatusCode: fetchErr.StatusCode,
			Message:    fetchErr.Error(),
		}
		h.log.Warn().
			Err(err).
			Str("session_id", session.ID).
			Int("page", fetchErr.Page).
			Msg("Scrape ended early, returning partial results")
	}

	resp.Cleaned = h.cleaner.Clean(raw)
	resp.Summary = cleaner.Summarize(resp.Cleaned)

	if req.Export && h.deps.Exporter != nil && len(raw) > 0 {
		files, err := h.deps.Exporter.Export(exportName(req, job), raw, resp.Cleaned)
		if err != nil {
			h.log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to export datasets")
		}
		resp.Files = files
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) jobFor(req ScrapeRequest) (crawler.ScrapeJob, error) {
	job := h.defaults

	switch {
	case req.URL != "":
		job.BaseURL = req.URL
	case req.Category != "":
		c, ok := crawler.FindCategory(h.categories, req.Category)
		if !ok {
			return job, errors.NewValidation("api", "unknown category: "+req.Category)
		}
		job.BaseURL = c.URL
	default:
		return job, errors.NewValidation("api", "either category or url is required")
	}

	if req.Pages < 0 || req.Pages > MaxPages {
		return job, errors.NewValidation("api", "pages out of range")
	}
	if req.Pages > 0 {
		job.PageCount = req.Pages
	}
	if req.DelaySeconds != nil {
		job.InterPageDelay = time.Duration(*req.DelaySeconds * float64(time.Second))
		if job.InterPageDelay > MaxDelay {
			return job, errors.NewValidation("api", "delaySeconds out of range")
		}
	}

	return job, job.Validate()
}

// exportName is the category name, or the URL path for URL requests
func exportName(req ScrapeRequest, job crawler.ScrapeJob) string {
	if req.Category != "" {
		return req.Category
	}
	if u, err := url.Parse(job.BaseURL); err == nil && u.Path != "" && u.Path != "/" {
		return u.Path
	}
	return "custom"
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func nonNilRaw(raw []crawler.RawListing) []crawler.RawListing {
	if raw == nil {
		return []crawler.RawListing{}
	}
	return raw
}
