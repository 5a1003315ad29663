package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/roberthalf"
)

const (
	filenamePrefix  = "roberthalf"
	htmlFilename    = "jobs.html"
	timestampLayout = "20060102_150405"
)

// Writer persists the per-run JSON report and the browsable HTML report.
// JSON reports accumulate in outputDir and double as the new-job ledger:
// the latest one provides the id set the next run diffs against.
type Writer struct {
	outputDir string
	docsDir   string
	state     string
	period    string
	logger    *zap.Logger
}

func NewWriter(outputDir, docsDir, state, period string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		outputDir: outputDir,
		docsDir:   docsDir,
		state:     state,
		period:    period,
		logger:    logger,
	}
}

// Summary describes what a run wrote and the counts that feed notifications.
type Summary struct {
	JSONPath   string
	HTMLPath   string
	StateJobs  int
	RemoteJobs int
	NewJobs    int
	TotalJobs  int
	TotalFound int64
}

// PreviousIDs loads the job id set from the most recent JSON report. A
// missing or unreadable report yields an empty set so every job counts as
// new, never an error.
func (w *Writer) PreviousIDs() map[string]struct{} {
	ids := make(map[string]struct{})

	pattern := filepath.Join(w.outputDir, fmt.Sprintf("%s_%s_jobs_*.json", filenamePrefix, strings.ToLower(w.state)))
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		w.logger.Info("no previous report found, treating all jobs as new", zap.String("pattern", pattern))
		return ids
	}

	// Filenames embed a fixed-width timestamp, so lexicographic order is
	// chronological order.
	sort.Strings(files)
	latest := files[len(files)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		w.logger.Warn("cannot read previous report, treating all jobs as new",
			zap.String("path", latest), zap.Error(err))
		return ids
	}

	var doc struct {
		Jobs []struct {
			ID string `json:"unique_job_number"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		w.logger.Warn("cannot parse previous report, treating all jobs as new",
			zap.String("path", latest), zap.Error(err))
		return ids
	}

	for _, job := range doc.Jobs {
		if job.ID != "" {
			ids[job.ID] = struct{}{}
		}
	}

	w.logger.Info("loaded previous report",
		zap.String("path", latest),
		zap.Int("job_ids", len(ids)),
	)

	return ids
}

// Write saves the JSON report and, when a docs directory is configured, the
// HTML report. It returns a summary of what was written.
func (w *Writer) Write(jobs []*roberthalf.Job, newIDs map[string]struct{}, totalFound int64, now time.Time) (*Summary, error) {
	summary := &Summary{
		TotalJobs:  len(jobs),
		NewJobs:    len(newIDs),
		TotalFound: totalFound,
	}
	for _, job := range jobs {
		if job.State == w.state {
			summary.StateJobs++
		}
		if job.IsRemote() {
			summary.RemoteJobs++
		}
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	stateKey := strings.ToLower(w.state)
	doc := map[string]any{
		"jobs":      jobs,
		"timestamp": now.UTC().Format(time.RFC3339),
		fmt.Sprintf("total_%s_jobs", stateKey): summary.StateJobs,
		"total_remote_jobs":          summary.RemoteJobs,
		"total_new_jobs":             summary.NewJobs,
		"total_jobs_found_in_period": totalFound,
		"job_post_period_filter":     w.period,
		"state_filter":               w.state,
		"status":                     "Completed",
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_jobs_%s.json", filenamePrefix, stateKey, now.UTC().Format(timestampLayout))
	summary.JSONPath = filepath.Join(w.outputDir, filename)
	if err := os.WriteFile(summary.JSONPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	w.logger.Info("saved json report",
		zap.String("path", summary.JSONPath),
		zap.Int("total_jobs", summary.TotalJobs),
		zap.Int("state_jobs", summary.StateJobs),
		zap.Int("remote_jobs", summary.RemoteJobs),
		zap.Int("new_jobs", summary.NewJobs),
	)

	if w.docsDir == "" {
		return summary, nil
	}

	html, err := renderHTML(jobs, summary, w.state, w.period, now)
	if err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}

	if err := os.MkdirAll(w.docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create docs directory: %w", err)
	}

	summary.HTMLPath = filepath.Join(w.docsDir, htmlFilename)
	if err := os.WriteFile(summary.HTMLPath, []byte(html), 0o644); err != nil {
		return nil, fmt.Errorf("write html report: %w", err)
	}

	w.logger.Info("saved html report", zap.String("path", summary.HTMLPath))

	return summary, nil
}
