package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/ai"
	"github.com/jwhalen/jobwatch/internal/logger"
	"github.com/jwhalen/jobwatch/internal/notify"
	"github.com/jwhalen/jobwatch/internal/report"
	"github.com/jwhalen/jobwatch/internal/roberthalf"
	"github.com/jwhalen/jobwatch/internal/session"
	"github.com/jwhalen/jobwatch/internal/utils"
)

// SessionSource supplies and invalidates the authenticated session.
type SessionSource interface {
	Acquire(ctx context.Context) (*session.Session, error)
	Invalidate()
}

// JobFetcher walks the paginated search.
type JobFetcher interface {
	FetchAll(ctx context.Context, sess *session.Session, cfg roberthalf.SearchConfig, categories []roberthalf.Category) (*roberthalf.FetchResult, error)
}

// Deps are the pipeline collaborators. Scorer and Notifier are optional;
// a nil value disables that stage.
type Deps struct {
	Sessions SessionSource
	Board    JobFetcher
	Scorer   ai.Scorer
	Reports  *report.Writer
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Options are the per-run knobs.
type Options struct {
	Search     roberthalf.SearchConfig
	Categories []roberthalf.Category

	// AnalyzeAll scores every job instead of only new ones.
	AnalyzeAll bool
	// TestMode scores every job and sends a synthetic notification when the
	// run found nothing.
	TestMode bool

	// ReportURL is the published location of the HTML report, attached to
	// the notification.
	ReportURL string

	// JobDelayMin/Max bound the randomized pause between scoring calls.
	JobDelayMin time.Duration
	JobDelayMax time.Duration

	// Confirm, when set, gates the scoring stage on user approval. It
	// receives the number of jobs about to be analyzed.
	Confirm func(count int) bool
}

// Result is what one run produced.
type Result struct {
	Jobs     []*roberthalf.Job
	Summary  *report.Summary
	NewIDs   map[string]struct{}
	Analyzed int
}

// Pipeline is the single-threaded batch run: session, fetch, diff, score,
// report, notify.
type Pipeline struct {
	deps Deps
	log  *zap.Logger
}

func New(deps Deps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{deps: deps, log: log}
}

// Run executes one complete pass. Fetch-stage sentinel errors pass through
// unwrapped so the caller can map them to exit codes.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	sess, err := p.deps.Sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	fetched, err := p.deps.Board.FetchAll(ctx, sess, opts.Search, opts.Categories)
	if errors.Is(err, roberthalf.ErrSessionInvalid) {
		// The stored session looked fine but the API rejected it. Drop it
		// so the next run authenticates from scratch, and abort this one.
		p.log.Warn("session rejected mid-run, discarding it", zap.Error(err))
		p.deps.Sessions.Invalidate()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	previous := p.deps.Reports.PreviousIDs()
	newIDs := roberthalf.MarkNew(fetched.Jobs, previous)

	p.log.Info("run inventory",
		zap.Int("total_jobs", len(fetched.Jobs)),
		zap.Int("new_jobs", len(newIDs)),
		zap.Int("duplicates_removed", fetched.Duplicates),
		zap.Int("api_total", fetched.TotalFound),
	)

	result := &Result{Jobs: fetched.Jobs, NewIDs: newIDs}

	if p.deps.Scorer != nil {
		analyzed, err := p.scoreJobs(ctx, fetched.Jobs, opts)
		if err != nil {
			return nil, err
		}
		result.Analyzed = analyzed
	}

	summary, err := p.deps.Reports.Write(fetched.Jobs, newIDs, int64(fetched.TotalFound), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("writing reports: %w", err)
	}
	result.Summary = summary

	if p.deps.Notifier != nil {
		msg := notify.BuildRunMessage(fetched.Jobs, summary, opts.Search.State, opts.Search.PostedWithin, opts.ReportURL, opts.TestMode)
		if err := p.deps.Notifier.Send(ctx, msg); err != nil {
			// The reports are already on disk; a lost notification is not
			// worth failing the run.
			p.log.Warn("could not send notification", zap.Error(err))
		}
	}

	return result, nil
}

// scoreJobs runs the match analysis over the eligible subset. A per-job
// analysis failure is recorded on the job and the loop continues.
func (p *Pipeline) scoreJobs(ctx context.Context, jobs []*roberthalf.Job, opts Options) (int, error) {
	var eligible []*roberthalf.Job
	for _, job := range jobs {
		if job.IsNew || opts.AnalyzeAll || opts.TestMode {
			eligible = append(eligible, job)
		}
	}

	if len(eligible) == 0 {
		p.log.Info("no jobs eligible for analysis")
		return 0, nil
	}

	if opts.Confirm != nil && !opts.Confirm(len(eligible)) {
		p.log.Info("analysis declined", zap.Int("eligible", len(eligible)))
		return 0, nil
	}

	p.log.Info("analyzing jobs", zap.Int("count", len(eligible)))

	analyzed := 0
	for i, job := range eligible {
		if i > 0 && opts.JobDelayMax > 0 {
			delay := utils.RandomBetween(opts.JobDelayMin, opts.JobDelayMax)
			if err := utils.WaitFor(ctx, delay); err != nil {
				return analyzed, err
			}
		}

		job.Match = p.deps.Scorer.Analyze(ctx, jobContext(job))
		analyzed++

		if job.Match.Failed() {
			p.log.Warn("analysis failed for job",
				zap.String(logger.FieldJobID, job.ID),
				zap.String("reason", job.Match.Err),
			)
		}
	}

	return analyzed, nil
}

func jobContext(job *roberthalf.Job) ai.JobContext {
	metadata := map[string]string{
		"title":   job.Title,
		"city":    job.City,
		"state":   job.State,
		"country": job.Country,
		"remote":  job.Remote,
	}
	if job.EmpType != "" {
		metadata["employment_type"] = job.EmpType
	}
	if pay := job.PayRange(); pay != "" {
		metadata["pay_range"] = pay
	}

	return ai.JobContext{
		ID:          job.ID,
		Title:       job.Title,
		Description: job.Description,
		Metadata:    metadata,
	}
}
