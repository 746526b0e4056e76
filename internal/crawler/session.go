package crawler

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/pkg/errors"
)

// ErrSessionUsed is returned when Run is called on a session that already ran
var ErrSessionUsed = stderrors.New("scrape session already used")

// Session drives one paginated scrape: fetch, extract, accumulate, wait.
// Pages are processed one at a time in ascending order, so the returned
// records are ordered by page and by position within the page.
type Session struct {
	ID string

	fetcher   Fetcher
	selectors Selectors
	limiter   Limiter
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logger.Logger

	mu    sync.Mutex
	state State
	page  int
}

// SessionOption customizes a Session
type SessionOption func(*Session)

// WithSelectors overrides the card schema
func WithSelectors(selectors Selectors) SessionOption {
	return func(s *Session) { s.selectors = selectors }
}

// WithLimiter gates every page start on l in addition to the fixed delay
func WithLimiter(l Limiter) SessionOption {
	return func(s *Session) { s.limiter = l }
}

// WithClock replaces the capture-time source
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSleep replaces the inter-page wait, used by tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) { s.sleep = sleep }
}

// NewSession creates an idle session using fetcher
func NewSession(fetcher Fetcher, opts ...SessionOption) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		fetcher:   fetcher,
		selectors: DefaultSelectors,
		now:       time.Now,
		sleep:     sleepContext,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.ForSession(s.ID)
	return s
}

// State returns the current state and the page it refers to
func (s *Session) State() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.page
}

func (s *Session) transition(state State, page int) {
	s.mu.Lock()
	s.state = state
	s.page = page
	s.mu.Unlock()

	s.log.Debug().Str("state", state.String()).Int("page", page).Msg("Session state changed")
}

// Run executes job. On the first fetch failure it stops and returns the
// records gathered so far together with the *errors.FetchError. Cards that
// cannot be fully extracted are skipped without error.
//
// ctx is checked between pages only; a page that has started is finished.
func (s *Session) Run(ctx context.Context, job ScrapeJob) ([]RawListing, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSessionUsed
	}
	s.mu.Unlock()

	if err := job.Validate(); err != nil {
		s.transition(StateAborted, 0)
		return nil, err
	}

	extractor := NewExtractor(s.selectors, job.BaseURL)
	pageCtx := context.WithoutCancel(ctx)
	var listings []RawListing

	s.log.Info().
		Str("url", job.BaseURL).
		Int("pages", job.PageCount).
		Dur("delay", job.InterPageDelay).
		Msg("Starting scrape session")

	for page := 1; page <= job.PageCount; page++ {
		if err := s.beforePage(ctx, page); err != nil {
			return s.abort(listings, errors.NewCanceled(page, job.BaseURL, err))
		}

		s.transition(StateFetching, page)
		body, err := s.fetcher.Fetch(pageCtx, job.BaseURL, page)
		if err != nil {
			return s.abort(listings, asFetchError(page, job.BaseURL, err))
		}

		s.transition(StateExtracting, page)
		doc, err := createDocument(body)
		if err != nil {
			return s.abort(listings, errors.NewParsing(page, job.BaseURL, err))
		}

		found, skipped := extractor.ExtractPage(doc, page, s.now())
		listings = append(listings, found...)

		s.log.Info().
			Int("page", page).
			Int("records", len(found)).
			Int("skipped", skipped).
			Msg("Page extracted")

		if page < job.PageCount {
			if err := s.sleep(ctx, job.InterPageDelay); err != nil {
				return s.abort(listings, errors.NewCanceled(page+1, job.BaseURL, err))
			}
		}
	}

	s.transition(StateCompleted, job.PageCount)
	s.log.Info().Int("records", len(listings)).Msg("Scrape session completed")
	return listings, nil
}

func (s *Session) beforePage(ctx context.Context, page int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

func (s *Session) abort(listings []RawListing, err *errors.FetchError) ([]RawListing, error) {
	s.transition(StateAborted, err.Page)
	s.log.Error().
		Err(err).
		Int("page", err.Page).
		Int("records", len(listings)).
		Msg("Scrape session aborted")
	return listings, err
}

// asFetchError makes sure whatever a Fetcher returned is tagged with page
func asFetchError(page int, baseURL string, err error) *errors.FetchError {
	var fetchErr *errors.FetchError
	if stderrors.As(err, &fetchErr) {
		return fetchErr
	}
	return errors.NewNetwork(page, baseURL, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
