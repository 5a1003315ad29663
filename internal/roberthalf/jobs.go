package roberthalf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jwhalen/jobwatch/internal/ai"
)

// Job is one typed posting. Raw API records are validated and decoded into
// this shape at the fetch boundary before entering the pipeline.
type Job struct {
	ID            string `json:"unique_job_number"`
	Title         string `json:"jobtitle"`
	City          string `json:"city,omitempty"`
	State         string `json:"stateprovince,omitempty"`
	Country       string `json:"country,omitempty"`
	Remote        string `json:"remote,omitempty"`
	PostedDate    string `json:"date_posted,omitempty"`
	URL           string `json:"job_detail_url,omitempty"`
	Description   string `json:"description,omitempty"`
	PayRateMin    string `json:"payrate_min,omitempty"`
	PayRateMax    string `json:"payrate_max,omitempty"`
	PayRatePeriod string `json:"payrate_period,omitempty"`
	EmpType       string `json:"emptype,omitempty"`

	// Computed per run, never part of the raw API record.
	IsNew bool              `json:"is_new"`
	Match *ai.MatchAnalysis `json:"match_analysis,omitempty"`
}

// IsRemote reports whether the posting is flagged remote by the API.
func (j *Job) IsRemote() bool {
	return strings.EqualFold(j.Remote, "yes")
}

// Location renders a short human-readable location.
func (j *Job) Location() string {
	if j.IsRemote() {
		return "Remote (US)"
	}
	return fmt.Sprintf("%s, %s", j.City, j.State)
}

// PayRange renders the compensation range, or empty when not published.
func (j *Job) PayRange() string {
	if j.PayRateMin == "" || j.PayRateMax == "" || j.PayRatePeriod == "" {
		return ""
	}
	min, errMin := strconv.ParseFloat(j.PayRateMin, 64)
	max, errMax := strconv.ParseFloat(j.PayRateMax, 64)
	if errMin != nil || errMax != nil {
		return fmt.Sprintf("%s - %s (%s)", j.PayRateMin, j.PayRateMax, strings.ToLower(j.PayRatePeriod))
	}
	return fmt.Sprintf("$%s - $%s/%s", formatThousands(int(min)), formatThousands(int(max)), strings.ToLower(j.PayRatePeriod))
}

func formatThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// decodeJobs converts raw API records into typed jobs. Records are decoded
// leniently; structural validation (the id requirement) happens during merge.
func decodeJobs(items []map[string]any) ([]*Job, error) {
	var jobs []*Job
	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &jobs,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding job records: %w", err)
	}
	return jobs, nil
}

// MergeResult is the outcome of the cross-category merge.
type MergeResult struct {
	Jobs        []*Job
	Duplicates  int
	DroppedNoID int
}

// Merge concatenates category results and deduplicates by id, keeping the
// first occurrence. Jobs without an id are dropped, never merged.
func Merge(categories ...[]*Job) MergeResult {
	seen := make(map[string]struct{})
	result := MergeResult{}

	for _, jobs := range categories {
		for _, job := range jobs {
			if strings.TrimSpace(job.ID) == "" {
				result.DroppedNoID++
				continue
			}
			if _, ok := seen[job.ID]; ok {
				result.Duplicates++
				continue
			}
			seen[job.ID] = struct{}{}
			result.Jobs = append(result.Jobs, job)
		}
	}

	return result
}

// IDs returns the set of ids present in jobs.
func IDs(jobs []*Job) map[string]struct{} {
	ids := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if job.ID != "" {
			ids[job.ID] = struct{}{}
		}
	}
	return ids
}

// MarkNew flags every job whose id is absent from previous and returns the
// set of new ids. The returned set is always a subset of the current ids.
func MarkNew(jobs []*Job, previous map[string]struct{}) map[string]struct{} {
	newIDs := make(map[string]struct{})
	for _, job := range jobs {
		if job.ID == "" {
			continue
		}
		if _, ok := previous[job.ID]; !ok {
			job.IsNew = true
			newIDs[job.ID] = struct{}{}
		}
	}
	return newIDs
}
