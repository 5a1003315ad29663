package roberthalf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/session"
)

const (
	searchURL = "https://www.roberthalf.com/bin/jobSearchServlet"
	origin    = "https://www.roberthalf.com"
	referer   = "https://www.roberthalf.com/us/en/jobs"

	// Fixed number of records per paginated API call.
	PageSize = 25
)

// ErrSessionInvalid means a fetch failed after retries and the follow-up
// probe showed the session is no longer accepted. The run aborts so the next
// run re-authenticates.
var ErrSessionInvalid = errors.New("session invalid")

// ErrFetchFailed means a page could not be fetched despite retries while the
// session still probes as valid. Pagination cannot safely continue.
var ErrFetchFailed = errors.New("fetch failed")

// Client talks to the job-search servlet using a captured browser session.
type Client struct {
	HTTPClient *http.Client
	SearchURL  string
	logger     *zap.Logger
}

func New(logger *zap.Logger, timeout time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		SearchURL: searchURL,
		logger:    logger,
	}
}

// searchPayload is the JSON body of one search request.
type searchPayload struct {
	Country       string   `json:"country"`
	Keywords      string   `json:"keywords"`
	Location      string   `json:"location"`
	Distance      string   `json:"distance"`
	Remote        string   `json:"remote"`
	RemoteText    string   `json:"remoteText"`
	LanguageCodes []string `json:"languagecodes"`
	Source        []string `json:"source"`
	City          []string `json:"city"`
	EmpType       []string `json:"emptype"`
	LobID         []string `json:"lobid"`
	JobType       string   `json:"jobtype"`
	PostedWithin  string   `json:"postedwithin"`
	TimeType      string   `json:"timetype"`
	PageSize      int      `json:"pagesize"`
	PageNumber    int      `json:"pagenumber"`
	SortBy        string   `json:"sortby"`
	Mode          string   `json:"mode"`
	PayRateMin    int      `json:"payratemin"`
	IncludeDOE    string   `json:"includedoe"`
}

func basePayload(postedWithin string) searchPayload {
	return searchPayload{
		Country:       "us",
		Distance:      "50",
		Remote:        "No",
		LanguageCodes: []string{},
		Source:        []string{"Salesforce"},
		City:          []string{},
		EmpType:       []string{},
		LobID:         []string{"RHT"},
		PostedWithin:  postedWithin,
		PageSize:      PageSize,
		PageNumber:    1,
		SortBy:        "PUBLISHED_DATE_DESC",
	}
}

// searchResponse is the raw paginated response: an API-reported total plus
// the records of one page.
type searchResponse struct {
	Found json.Number      `json:"found"`
	Jobs  []map[string]any `json:"jobs"`
}

func (r *searchResponse) foundCount() int {
	n, err := r.Found.Int64()
	if err != nil {
		return -1
	}
	return int(n)
}

// post issues one search request. Network errors, non-2xx statuses and
// malformed bodies are all returned as errors; the retry loop operates on
// the returned error alone.
func (c *Client) post(ctx context.Context, sess *session.Session, payload searchPayload) (*searchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", sess.UserAgent)
	req.Header.Set("Cookie", sess.CookieHeader())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 401/403 strongly suggest the session cookies were rejected, but
		// the distinction is drawn by the validation probe, not here.
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	return &response, nil
}

// ValidateSession performs a minimal one-record probe. A well-formed JSON
// response of any content means the session is still accepted; network
// errors, non-2xx statuses and malformed bodies all mean invalid.
func (c *Client) ValidateSession(ctx context.Context, sess *session.Session) bool {
	payload := basePayload("")
	payload.PageSize = 1

	_, err := c.post(ctx, sess, payload)
	if err != nil {
		c.logger.Warn("session validation failed", zap.Error(err))
		return false
	}

	c.logger.Info("session validation successful")
	return true
}
