package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"sjsage522/listingworker/internal/cleaner"
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/pkg/errors"
	"sjsage522/listingworker/services/publisher"
)

// Exporter persists a finished dataset
type Exporter interface {
	Export(name string, raw []crawler.RawListing, cleaned []cleaner.CleanedListing) ([]string, error)
}

// SessionFactory builds a fresh session for every scrape
type SessionFactory func() *crawler.Session

// Target is one category to scrape with its job settings
type Target struct {
	Category crawler.Category
	Job      crawler.ScrapeJob
}

// Result is the outcome of scraping one target
type Result struct {
	Target    Target
	SessionID string
	Raw       []crawler.RawListing
	Cleaned   []cleaner.CleanedListing
	Summary   cleaner.Summary
	Err       error
	Elapsed   time.Duration
}

// Completed reports whether every configured page was scraped
func (r Result) Completed() bool {
	return r.Err == nil
}

// Worker runs scrape sessions and hands the datasets to the publisher and exporter
type Worker struct {
	ctx           context.Context
	targets       []Target
	newSession    SessionFactory
	cleaner       *cleaner.Cleaner
	publisher     publisher.Publisher
	exporter      Exporter
	crawlInterval time.Duration
	log           *logger.Logger
}

// NewWorker creates a new worker; publisher and exporter may be nil
func NewWorker(
	ctx context.Context,
	targets []Target,
	newSession SessionFactory,
	pub publisher.Publisher,
	exporter Exporter,
	crawlInterval time.Duration,
) *Worker {
	return &Worker{
		ctx:           ctx,
		targets:       targets,
		newSession:    newSession,
		cleaner:       cleaner.New(),
		publisher:     pub,
		exporter:      exporter,
		crawlInterval: crawlInterval,
		log:           logger.ForWorker(),
	}
}

// Start runs all targets once, or repeatedly every crawl interval until the
// context is canceled
func (w *Worker) Start() error {
	for {
		start := time.Now()
		results := w.RunOnce()
		w.log.Info().
			Int("targets", len(results)).
			Int("completed", countCompleted(results)).
			Dur("elapsed", time.Since(start)).
			Msg("Crawl round finished")

		if w.crawlInterval <= 0 {
			return nil
		}

		timer := time.NewTimer(w.crawlInterval)
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce scrapes every target. Each target gets its own session, so they
// run in parallel without sharing state; results keep target order.
func (w *Worker) RunOnce() []Result {
	runID := uuid.NewString()
	log := w.log.WithField("run_id", runID)
	log.Info().Int("targets", len(w.targets)).Msg("Crawl round started")

	results := make([]Result, len(w.targets))

	var wg sync.WaitGroup
	for i, t := range w.targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			results[i] = w.scrape(log, t)
		}(i, t)
	}
	wg.Wait()

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(context.WithoutCancel(w.ctx)); err != nil {
			log.Error().Err(err).Msg("Failed to trim streams")
		}
	}
	return results
}

// scrape runs one target through session, cleaner, publisher and exporter
func (w *Worker) scrape(runLog *logger.Logger, t Target) Result {
	start := time.Now()
	session := w.newSession()
	log := runLog.WithFields(logger.Fields{"category": t.Category.Name, "session_id": session.ID})

	raw, err := session.Run(w.ctx, t.Job)
	res := Result{Target: t, SessionID: session.ID, Raw: raw, Err: err}

	var fetchErr *errors.FetchError
	switch {
	case stderrors.As(err, &fetchErr) && fetchErr.Type == errors.ErrorTypeCanceled:
		log.Info().
			Int("page", fetchErr.Page).
			Int("records", len(raw)).
			Msg("Scrape stopped before next page, keeping partial results")
	case fetchErr != nil:
		log.Error().
			Err(err).
			Int("page", fetchErr.Page).
			Int("records", len(raw)).
			Bool("retryable", fetchErr.IsRetryable()).
			Msg("Connection problem while scraping, keeping partial results")
	case err != nil:
		log.Error().Err(err).Msg("Scrape job rejected")
		res.Elapsed = time.Since(start)
		return res
	case len(raw) == 0:
		log.Warn().Msg("Nothing matched: no listings extracted")
	}

	res.Cleaned = w.cleaner.Clean(raw)
	res.Summary = cleaner.Summarize(res.Cleaned)

	w.publish(log, t, res.Cleaned)
	w.export(log, res)

	res.Elapsed = time.Since(start)
	log.Info().
		Int("raw", len(res.Raw)).
		Int("cleaned", len(res.Cleaned)).
		Float64("mean_price", res.Summary.MeanPrice).
		Dur("elapsed", res.Elapsed).
		Msg("Category scraped")
	return res
}

func (w *Worker) publish(log *logger.Logger, t Target, cleaned []cleaner.CleanedListing) {
	if w.publisher == nil {
		return
	}
	// partial results of a canceled run are still delivered
	ctx := context.WithoutCancel(w.ctx)
	for _, listing := range cleaned {
		data, err := json.Marshal(listing)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode listing")
			return
		}
		if err := w.publisher.Publish(ctx, t.Category.Name, data); err != nil {
			log.Error().Err(err).Msg("Failed to publish listing")
			return
		}
	}
	log.Debug().Int("published", len(cleaned)).Msg("Listings published")
}

func (w *Worker) export(log *logger.Logger, res Result) {
	if w.exporter == nil || len(res.Raw) == 0 {
		return
	}
	if _, err := w.exporter.Export(res.Target.Category.Name, res.Raw, res.Cleaned); err != nil {
		log.Error().Err(err).Msg("Failed to export datasets")
	}
}

func countCompleted(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Completed() {
			n++
		}
	}
	return n
}

// TargetsFor selects the categories to scrape. name "all" selects every
// category; otherwise the category is looked up by name.
func TargetsFor(categories []crawler.Category, name string, job crawler.ScrapeJob) ([]Target, error) {
	var selected []crawler.Category
	if name == "all" {
		selected = categories
	} else {
		c, ok := crawler.FindCategory(categories, name)
		if !ok {
			return nil, errors.NewValidation("worker", "unknown category "+strconv.Quote(name))
		}
		selected = []crawler.Category{c}
	}

	targets := make([]Target, 0, len(selected))
	for _, c := range selected {
		j := job
		j.BaseURL = c.URL
		targets = append(targets, Target{Category: c, Job: j})
	}
	return targets, nil
}
