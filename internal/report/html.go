package report

import (
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/jwhalen/jobwatch/internal/roberthalf"
)

// Report timestamps render in Central time to match the job board's market.
const displayTimezone = "America/Chicago"

type htmlPage struct {
	ISOTimestamp string
	GeneratedAt  string
	State        string
	Period       string
	StateJobs    int
	RemoteJobs   int
	TotalJobs    int
	NewJobs      int
	TotalFound   int64
	Rows         []htmlRow
}

type htmlRow struct {
	Title       string
	URL         string
	Location    string
	PayRate     string
	ID          string
	Posted      string
	Description template.HTML
	IsNew       bool
}

var reportTemplate = template.Must(template.New("jobs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Robert Half Job Report ({{.State}}) - {{.ISOTimestamp}}</title>
    <style>
        body { font-family: sans-serif; margin: 20px; }
        h1 { color: #333; }
        p { color: #555; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        a { color: #007bff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .pay-rate { white-space: nowrap; }
        .location { white-space: nowrap; }
        details { margin: 10px 0; }
        summary {
            cursor: pointer;
            color: #555;
            padding: 6px;
            background-color: #f8f9fa;
            border: 1px solid #dee2e6;
            border-radius: 4px;
            font-size: 0.9rem;
            font-weight: normal;
        }
        summary:hover { background-color: #e9ecef; color: #333; }
        .job-description {
            padding: 15px;
            background-color: #fff;
            border: 1px solid #dee2e6;
            border-radius: 4px;
            margin-top: 8px;
        }
        .description-row td {
            padding: 0 8px;
            background-color: #fff;
            border: none;
            border-bottom: 1px solid #ddd;
        }
        .description-row.new-job td { background-color: #f0fff0; }
        .new-job > td { background-color: #f0fff0 !important; }
        .new-tag {
            display: inline-block;
            background-color: #28a745;
            color: white;
            padding: 2px 6px;
            font-size: 0.75em;
            font-weight: bold;
            border-radius: 4px;
            margin-right: 5px;
            vertical-align: middle;
        }
    </style>
</head>
<body>
    <h1>Robert Half Job Report</h1>
    <p>Generated: {{.GeneratedAt}}</p>
    <p>Filters: State = {{.State}}, Posted Within = {{.Period}}</p>
    <p>Found {{.StateJobs}} jobs in {{.State}} and {{.RemoteJobs}} remote jobs (Total Unique: {{.TotalJobs}}). Identified <span style="background-color: #f0fff0; padding: 1px 3px; border: 1px solid #ccc;">{{.NewJobs}} New Jobs</span> since last report. API reported {{.TotalFound}} total jobs matching period.</p>

    <table>
        <thead>
            <tr>
                <th>Title</th>
                <th>Location</th>
                <th>Pay Rate</th>
                <th>Job ID</th>
                <th>Posted Date</th>
            </tr>
        </thead>
        <tbody>
{{- range .Rows}}
            <tr{{if .IsNew}} class="new-job"{{end}}>
                <td>{{if .IsNew}}<span class="new-tag">NEW</span> {{end}}<a href="{{.URL}}" target="_blank">{{.Title}}</a></td>
                <td class="location">{{.Location}}</td>
                <td class="pay-rate">{{.PayRate}}</td>
                <td>{{.ID}}</td>
                <td>{{.Posted}}</td>
            </tr>
            <tr class="description-row{{if .IsNew}} new-job{{end}}">
                <td colspan="5">
                    <details>
                        <summary>View Job Details</summary>
                        <div class="job-description">
                            {{.Description}}
                        </div>
                    </details>
                </td>
            </tr>
{{- end}}
        </tbody>
    </table>
</body>
</html>
`))

func renderHTML(jobs []*roberthalf.Job, summary *Summary, state, period string, now time.Time) (string, error) {
	loc, err := time.LoadLocation(displayTimezone)
	if err != nil {
		loc = time.UTC
	}

	sorted := make([]*roberthalf.Job, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PostedDate != sorted[j].PostedDate {
			return sorted[i].PostedDate > sorted[j].PostedDate
		}
		return sorted[i].Title > sorted[j].Title
	})

	page := htmlPage{
		ISOTimestamp: now.UTC().Format(time.RFC3339),
		GeneratedAt:  now.In(loc).Format("2006-01-02 15:04:05 MST"),
		State:        state,
		Period:       strings.ReplaceAll(period, "_", " "),
		StateJobs:    summary.StateJobs,
		RemoteJobs:   summary.RemoteJobs,
		TotalJobs:    summary.TotalJobs,
		NewJobs:      summary.NewJobs,
		TotalFound:   summary.TotalFound,
	}

	for _, job := range sorted {
		description := job.Description
		if strings.TrimSpace(description) == "" {
			description = "No description available."
		}

		payRate := job.PayRange()
		if payRate == "" {
			payRate = "N/A"
		}

		page.Rows = append(page.Rows, htmlRow{
			Title:       job.Title,
			URL:         job.URL,
			Location:    job.Location(),
			PayRate:     payRate,
			ID:          job.ID,
			Posted:      formatPostedDate(job.PostedDate, loc),
			Description: template.HTML(description),
			IsNew:       job.IsNew,
		})
	}

	var builder strings.Builder
	if err := reportTemplate.Execute(&builder, page); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func formatPostedDate(raw string, loc *time.Location) string {
	if raw == "" {
		return "N/A"
	}
	posted, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return posted.In(loc).Format("2006-01-02 15:04 MST")
}
