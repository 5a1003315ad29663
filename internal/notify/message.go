package notify

import (
	"fmt"
	"strings"

	"github.com/jwhalen/jobwatch/internal/report"
	"github.com/jwhalen/jobwatch/internal/roberthalf"
)

const (
	maxJobsInMessage = 5
	newMarker        = `<b><font color="#28a745">NEW!</font></b> `
)

// BuildRunMessage composes the push notification for one run. New jobs are
// listed first, padded with the most recent known jobs up to five entries.
func BuildRunMessage(jobs []*roberthalf.Job, summary *report.Summary, state, period, reportURL string, testMode bool) Message {
	msg := Message{
		Title: fmt.Sprintf("Robert Half %s & Remote Jobs", state),
		HTML:  true,
	}
	if reportURL != "" {
		msg.URL = reportURL
		msg.URLTitle = fmt.Sprintf("View Full %s/Remote Job List", state)
	}

	if testMode && len(jobs) == 0 {
		msg.Text = testModeText(state)
		return msg
	}

	periodText := strings.ReplaceAll(strings.ToLower(period), "_", " ")

	var text strings.Builder
	if summary.NewJobs > 0 {
		fmt.Fprintf(&text, "Found %d NEW jobs! (%d in %s, %d remote total) in the %s.",
			summary.NewJobs, summary.StateJobs, state, summary.RemoteJobs, periodText)
	} else {
		fmt.Fprintf(&text, "No new jobs found. (%d in %s, %d remote total) in the %s.",
			summary.StateJobs, state, summary.RemoteJobs, periodText)
	}

	top := topJobs(jobs)
	if len(top) > 0 {
		text.WriteString("\n\nLatest/Newest:\n")
		for i, job := range top {
			if i > 0 {
				text.WriteString("\n")
			}
			text.WriteString(jobLine(job))
		}
	}

	if remaining := len(jobs) - len(top); remaining > 0 {
		fmt.Fprintf(&text, "\n\n...and %d more jobs", remaining)
	}

	text.WriteString("\n\nClick the link below to view the full list.")

	msg.Text = text.String()
	return msg
}

// topJobs picks up to five jobs for the message body, new ones first.
func topJobs(jobs []*roberthalf.Job) []*roberthalf.Job {
	var top []*roberthalf.Job
	for _, job := range jobs {
		if job.IsNew && len(top) < maxJobsInMessage {
			top = append(top, job)
		}
	}
	for _, job := range jobs {
		if len(top) >= maxJobsInMessage {
			break
		}
		if !job.IsNew {
			top = append(top, job)
		}
	}
	return top
}

func jobLine(job *roberthalf.Job) string {
	location := fmt.Sprintf("%s, %s", job.City, job.State)
	if job.IsRemote() {
		location = "Remote"
	}

	var line strings.Builder
	if job.IsNew {
		line.WriteString(newMarker)
	}
	fmt.Fprintf(&line, "\u2022 %s (%s)", job.Title, location)
	if pay := job.PayRange(); pay != "" {
		line.WriteString("\n  ")
		line.WriteString(pay)
	}
	return line.String()
}

func testModeText(state string) string {
	return fmt.Sprintf("\U0001f9ea TEST MODE: Simulating job notification!\n\n"+
		newMarker+"Found 3 test jobs in %s:\n"+
		newMarker+"\u2022 Test Software Engineer (Austin)\n  $120,000 - $150,000/yearly\n"+
		newMarker+"\u2022 Test Developer (Dallas)\n  $130,000 - $160,000/yearly\n"+
		"\u2022 Test DevOps Engineer (Houston)\n  $140,000 - $170,000/yearly"+
		"\n\nClick link to view simulated HTML report.", state)
}
