package roberthalf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jwhalen/jobwatch/internal/session"
)

func fastConfig() SearchConfig {
	return SearchConfig{
		State:          "TX",
		PostedWithin:   "PAST_24_HOURS",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		PageDelayMin:   time.Millisecond,
		PageDelayMax:   2 * time.Millisecond,
	}
}

func testClientSession(t *testing.T, url string) (*Client, *session.Session) {
	t.Helper()
	client := New(zap.NewNop(), 5*time.Second)
	client.SearchURL = url
	sess := &session.Session{
		Cookies:   []session.Cookie{{Name: "sid", Value: "abc"}},
		UserAgent: "test-agent",
		CreatedAt: time.Now(),
	}
	return client, sess
}

func rawJob(id string, state string) map[string]any {
	return map[string]any{
		"unique_job_number": id,
		"jobtitle":          "Engineer " + id,
		"stateprovince":     state,
		"country":           "US",
		"remote":            "No",
	}
}

// pagedHandler serves `total` jobs in pages of PageSize, honoring the
// pagenumber field of the posted payload.
func pagedHandler(t *testing.T, total int, pages *atomic.Int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			PageNumber int `json:"pagenumber"`
			PageSize   int `json:"pagesize"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}

		if payload.PageSize == 1 {
			// validation probe
			fmt.Fprint(w, `{"found": 1, "jobs": []}`)
			return
		}

		pages.Add(1)

		start := (payload.PageNumber - 1) * payload.PageSize
		end := start + payload.PageSize
		if end > total {
			end = total
		}
		jobs := make([]map[string]any, 0)
		for i := start; i < end; i++ {
			jobs = append(jobs, rawJob(fmt.Sprintf("JR-%03d", i), "TX"))
		}

		json.NewEncoder(w).Encode(map[string]any{"found": total, "jobs": jobs})
	}
}

func TestFetchCategoryTerminatesAtReportedTotal(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(pagedHandler(t, 37, &pages))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)

	jobs, found, err := client.fetchCategory(context.Background(), sess, fastConfig(), Category{Name: "local"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != 37 {
		t.Fatalf("expected found=37, got %d", found)
	}
	if got := pages.Load(); got != 2 {
		t.Fatalf("expected exactly 2 pages to be fetched, got %d", got)
	}
	if len(jobs) != 37 {
		t.Fatalf("expected 37 jobs, got %d", len(jobs))
	}
}

func TestFetchCategoryTerminatesOnShortPage(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(pagedHandler(t, 12, &pages))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)

	jobs, _, err := client.fetchCategory(context.Background(), sess, fastConfig(), Category{Name: "local"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pages.Load(); got != 1 {
		t.Fatalf("expected 1 page, got %d", got)
	}
	if len(jobs) != 12 {
		t.Fatalf("expected 12 jobs, got %d", len(jobs))
	}
}

func TestFetchCategoryTerminatesOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"found": 0, "jobs": []}`)
	}))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)

	jobs, _, err := client.fetchCategory(context.Background(), sess, fastConfig(), Category{Name: "local"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestFetchWithRetryBound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)
	cfg := fastConfig()

	_, err := client.fetchWithRetry(context.Background(), sess, cfg, Category{Name: "local"}, 1)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := attempts.Load(); got != int32(cfg.MaxRetries+1) {
		t.Fatalf("expected %d attempts, got %d", cfg.MaxRetries+1, got)
	}
}

func TestFetchAllSessionInvalid(t *testing.T) {
	// Every request fails, including the validation probe.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)

	_, err := client.FetchAll(context.Background(), sess, fastConfig(), DefaultCategories)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestFetchAllFetchFailed(t *testing.T) {
	// Full pages fail, but the one-record validation probe succeeds.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			PageSize int `json:"pagesize"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.PageSize == 1 {
			fmt.Fprint(w, `{"found": 1, "jobs": []}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)

	_, err := client.FetchAll(context.Background(), sess, fastConfig(), DefaultCategories)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchAllMergesCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Remote   string `json:"remote"`
			PageSize int    `json:"pagesize"`
		}
		json.NewDecoder(r.Body).Decode(&payload)

		var jobs []map[string]any
		if payload.Remote == "yes" {
			remote := rawJob("JR-002", "NY")
			remote["remote"] = "yes"
			shared := rawJob("JR-001", "TX")
			jobs = []map[string]any{remote, shared}
		} else {
			jobs = []map[string]any{rawJob("JR-001", "TX")}
		}
		json.NewEncoder(w).Encode(map[string]any{"found": len(jobs), "jobs": jobs})
	}))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)

	result, err := client.FetchAll(context.Background(), sess, fastConfig(), DefaultCategories)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Fatalf("expected 2 unique jobs, got %d", len(result.Jobs))
	}
	if result.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", result.Duplicates)
	}
	if result.TotalFound != 3 {
		t.Fatalf("expected total found 3, got %d", result.TotalFound)
	}
}

func TestValidateSession(t *testing.T) {
	t.Run("well-formed response is valid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"found": 0, "jobs": []}`)
		}))
		defer srv.Close()

		client, sess := testClientSession(t, srv.URL)
		if !client.ValidateSession(context.Background(), sess) {
			t.Fatal("expected session to validate")
		}
	})

	t.Run("non-2xx status is invalid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client, sess := testClientSession(t, srv.URL)
		if client.ValidateSession(context.Background(), sess) {
			t.Fatal("expected session to be invalid on 401")
		}
	})

	t.Run("malformed body is invalid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		}))
		defer srv.Close()

		client, sess := testClientSession(t, srv.URL)
		if client.ValidateSession(context.Background(), sess) {
			t.Fatal("expected session to be invalid on malformed body")
		}
	})
}

func TestPostSendsSessionHeaders(t *testing.T) {
	var gotCookie, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"found": 0, "jobs": []}`)
	}))
	defer srv.Close()

	client, sess := testClientSession(t, srv.URL)
	if _, err := client.post(context.Background(), sess, basePayload("")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotCookie != "sid=abc" {
		t.Fatalf("unexpected cookie header: %q", gotCookie)
	}
	if gotUA != "test-agent" {
		t.Fatalf("unexpected user agent: %q", gotUA)
	}
}
