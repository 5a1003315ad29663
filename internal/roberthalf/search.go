package roberthalf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/logger"
	"github.com/jwhalen/jobwatch/internal/session"
	"github.com/jwhalen/jobwatch/internal/utils"
)

// SearchConfig controls the paginated fetch.
type SearchConfig struct {
	// State is the two-letter state code local jobs must match.
	State string
	// PostedWithin is the API period filter, e.g. "PAST_24_HOURS".
	PostedWithin string
	// MaxRetries is the number of additional attempts after the first
	// failure of one page fetch.
	MaxRetries int
	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration
	// PageDelayMin/Max bound the randomized pause between pages. The pause
	// between categories is 1.5x this range.
	PageDelayMin time.Duration
	PageDelayMax time.Duration
}

// Category is one job-category walk of the paginated search.
type Category struct {
	Name   string
	Remote bool
}

// DefaultCategories are the two walks of every run: jobs local to the
// configured state, then US remote jobs.
var DefaultCategories = []Category{
	{Name: "local", Remote: false},
	{Name: "remote", Remote: true},
}

// FetchResult is the merged, deduplicated outcome of all category walks.
type FetchResult struct {
	Jobs        []*Job
	Duplicates  int
	DroppedNoID int
	// TotalFound sums the API-reported totals across categories.
	TotalFound int
}

// fetchPage issues one API call for a single page of one category.
func (c *Client) fetchPage(ctx context.Context, sess *session.Session, cfg SearchConfig, category Category, page int) (*searchResponse, error) {
	payload := basePayload(cfg.PostedWithin)
	payload.PageNumber = page
	if category.Remote {
		payload.Remote = "yes"
	}

	c.logger.Info("fetching page",
		zap.String(logger.FieldCategory, category.Name),
		zap.Int("page", page),
	)

	return c.post(ctx, sess, payload)
}

// fetchWithRetry wraps fetchPage in a bounded retry loop with exponential
// backoff and jitter. It makes at most MaxRetries+1 attempts.
func (c *Client) fetchWithRetry(ctx context.Context, sess *session.Session, cfg SearchConfig, category Category, page int) (*searchResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := cfg.RetryBaseDelay*(1<<(attempt-1)) + utils.RandomBetween(0, cfg.RetryBaseDelay)
			c.logger.Warn("page fetch failed, retrying",
				zap.String(logger.FieldCategory, category.Name),
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, backoff); err != nil {
				return nil, err
			}
		}

		resp, err := c.fetchPage(ctx, sess, cfg, category, page)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	c.logger.Error("all retry attempts failed",
		zap.String(logger.FieldCategory, category.Name),
		zap.Int("page", page),
		zap.Int("attempts", cfg.MaxRetries+1),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// FetchAll walks every category's pagination to termination, filters each
// page, then merges and deduplicates across categories. On a retry-exhausted
// page it re-validates the session and aborts with ErrSessionInvalid or
// ErrFetchFailed.
func (c *Client) FetchAll(ctx context.Context, sess *session.Session, cfg SearchConfig, categories []Category) (*FetchResult, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}

	perCategory := make([][]*Job, 0, len(categories))
	totalFound := 0

	for i, category := range categories {
		if i > 0 {
			switchDelay := utils.RandomBetween(cfg.PageDelayMin*3/2, cfg.PageDelayMax*3/2)
			c.logger.Info("switching category",
				zap.String(logger.FieldCategory, category.Name),
				zap.Duration("delay", switchDelay),
			)
			if err := utils.WaitFor(ctx, switchDelay); err != nil {
				return nil, err
			}
		}

		jobs, found, err := c.fetchCategory(ctx, sess, cfg, category)
		if err != nil {
			return nil, err
		}

		perCategory = append(perCategory, jobs)
		if found > 0 {
			totalFound += found
		}
	}

	merged := Merge(perCategory...)
	if merged.Duplicates > 0 {
		c.logger.Info("removed duplicate jobs across categories",
			zap.Int("duplicates", merged.Duplicates),
			zap.Int("unique", len(merged.Jobs)),
		)
	}
	if merged.DroppedNoID > 0 {
		c.logger.Warn("dropped jobs without an id", zap.Int("count", merged.DroppedNoID))
	}

	return &FetchResult{
		Jobs:        merged.Jobs,
		Duplicates:  merged.Duplicates,
		DroppedNoID: merged.DroppedNoID,
		TotalFound:  totalFound,
	}, nil
}

// fetchCategory walks one category's pages until a termination condition.
func (c *Client) fetchCategory(ctx context.Context, sess *session.Session, cfg SearchConfig, category Category) ([]*Job, int, error) {
	var accumulated []*Job
	found := -1

	for page := 1; ; page++ {
		resp, err := c.fetchWithRetry(ctx, sess, cfg, category, page)
		if err != nil {
			// The failed fetch is only trustworthy evidence once the
			// session itself is ruled out.
			if !c.ValidateSession(ctx, sess) {
				return nil, 0, fmt.Errorf("%w: %s page %d unfetchable and probe rejected", ErrSessionInvalid, category.Name, page)
			}
			return nil, 0, fmt.Errorf("%w: %s page %d failed despite valid session: %v", ErrFetchFailed, category.Name, page, err)
		}

		// The API-reported total is read once per category, from the
		// first successfully fetched page.
		if found < 0 {
			if n := resp.foundCount(); n >= 0 {
				found = n
				c.logger.Info("api reported total for category",
					zap.String(logger.FieldCategory, category.Name),
					zap.Int("found", found),
				)
			} else {
				c.logger.Warn("could not parse api-reported total", zap.String(logger.FieldCategory, category.Name))
			}
		}

		if len(resp.Jobs) == 0 {
			c.logger.Info("no records on page, category finished",
				zap.String(logger.FieldCategory, category.Name),
				zap.Int("page", page),
			)
			break
		}

		pageJobs, err := decodeJobs(resp.Jobs)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s page %d: %v", ErrFetchFailed, category.Name, page, err)
		}

		kept := FilterJobs(pageJobs, cfg.State)
		c.logger.Info("filtered page",
			zap.String(logger.FieldCategory, category.Name),
			zap.Int("page", page),
			zap.Int("initial", len(pageJobs)),
			zap.Int("dropped", len(pageJobs)-len(kept)),
			zap.Int("left", len(kept)),
		)
		accumulated = append(accumulated, kept...)

		if len(resp.Jobs) < PageSize {
			c.logger.Info("short page, category finished",
				zap.String(logger.FieldCategory, category.Name),
				zap.Int("page", page),
				zap.Int("records", len(resp.Jobs)),
			)
			break
		}

		if found >= 0 {
			maxPages := (found + PageSize - 1) / PageSize
			if page >= maxPages {
				c.logger.Info("reached last expected page, category finished",
					zap.String(logger.FieldCategory, category.Name),
					zap.Int("page", page),
					zap.Int("max_pages", maxPages),
				)
				break
			}
		}

		pageDelay := utils.RandomBetween(cfg.PageDelayMin, cfg.PageDelayMax)
		c.logger.Debug("waiting before next page",
			zap.String(logger.FieldCategory, category.Name),
			zap.Int("next_page", page+1),
			zap.Duration("delay", pageDelay),
		)
		if err := utils.WaitFor(ctx, pageDelay); err != nil {
			return nil, 0, err
		}
	}

	return accumulated, found, nil
}

// FilterJobs keeps postings located in the configured state plus US remote
// postings.
func FilterJobs(jobs []*Job, state string) []*Job {
	kept := make([]*Job, 0, len(jobs))
	for _, job := range jobs {
		if job.State == state {
			kept = append(kept, job)
			continue
		}
		if job.IsRemote() && strings.EqualFold(job.Country, "us") {
			kept = append(kept, job)
		}
	}
	return kept
}
