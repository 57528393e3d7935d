package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avasilyev/jobscout/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverAdapter fetches postings from the Lever public postings API.
type LeverAdapter struct {
	companySlug string
	companyName string
	userAgent   string
	client      *http.Client
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(companySlug, companyName, userAgent string, client *http.Client) *LeverAdapter {
	return &LeverAdapter{
		companySlug: companySlug,
		companyName: companyName,
		userAgent:   userAgent,
		client:      client,
	}
}

// FetchPostings retrieves all jobs from the Lever board and flattens them
// into RawPostings.
func (a *LeverAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.companySlug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", a.companySlug, err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", a.companySlug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("lever fetch for %s: unexpected status %d", a.companySlug, resp.StatusCode),
		}
	}

	var leverJobs []leverJob
	if err := json.NewDecoder(resp.Body).Decode(&leverJobs); err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", a.companySlug, err)
	}

	postings := make([]model.RawPosting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Prefer allLocations if available, fall back to location
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// Lever ships description both as HTML and pre-rendered plain text.
		description := lj.DescriptionPlain
		if description == "" {
			description = extractText(lj.Description)
		}

		// createdAt is Unix milliseconds
		var postedAt *time.Time
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt)
			postedAt = &t
		}

		p := model.RawPosting{
			ExternalID:  lj.ID,
			Title:       lj.Text,
			Company:     a.companyName,
			Location:    location,
			Description: description,
			URL:         lj.HostedURL,
			PostedAt:    postedAt,
		}
		postings = append(postings, p)
	}

	return postings, nil
}
