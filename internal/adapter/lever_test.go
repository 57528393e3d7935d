package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avasilyev/jobscout/internal/model"
)

func newTestLever(srv *httptest.Server, slug, company string) *LeverAdapter {
	return NewLeverAdapter(slug, company, "jobscout-test", testClient(srv))
}

func TestLeverFetch_Success(t *testing.T) {
	payload := `[
		{
			"id": "abc-123",
			"text": "Platform Engineer",
			"description": "<div>We run <b>Kubernetes</b> at scale</div>",
			"descriptionPlain": "We run Kubernetes at scale",
			"categories": {
				"location": "Berlin",
				"allLocations": ["Berlin", "Remote EU"]
			},
			"createdAt": 1760000000000,
			"hostedUrl": "https://jobs.lever.co/acme/abc-123"
		},
		{
			"id": "def-456",
			"text": "Data Engineer",
			"description": "<p>Pipelines &amp; warehouses</p>",
			"descriptionPlain": "",
			"categories": {"location": "NYC"},
			"createdAt": 0,
			"hostedUrl": "https://jobs.lever.co/acme/def-456"
		}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mode") != "json" {
			t.Errorf("expected mode=json query, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	postings, err := newTestLever(srv, "acme", "Acme Corp").FetchPostings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.ExternalID != "abc-123" {
		t.Errorf("ExternalID = %s", p.ExternalID)
	}
	if p.Title != "Platform Engineer" {
		t.Errorf("Title = %s", p.Title)
	}
	// allLocations wins over the single location field.
	if p.Location != "Berlin, Remote EU" {
		t.Errorf("Location = %q", p.Location)
	}
	if p.Description != "We run Kubernetes at scale" {
		t.Errorf("Description = %q", p.Description)
	}
	if p.PostedAt == nil {
		t.Error("expected PostedAt from createdAt millis")
	}

	// Second posting has no descriptionPlain; the HTML variant is stripped.
	q := postings[1]
	if q.Description != "Pipelines & warehouses" {
		t.Errorf("Description = %q", q.Description)
	}
	if q.Location != "NYC" {
		t.Errorf("Location = %q", q.Location)
	}
	if q.PostedAt != nil {
		t.Errorf("PostedAt = %v, want nil for zero createdAt", q.PostedAt)
	}
}

func TestLeverFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestLever(srv, "gone-co", "Gone Co").FetchPostings(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
}
