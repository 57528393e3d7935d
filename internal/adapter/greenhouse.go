// Package adapter implements provider-specific clients that fetch raw
// postings from public job board APIs and flatten them into a common shape.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avasilyev/jobscout/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	Content        string             `json:"content"`
	AbsoluteURL    string             `json:"absolute_url"`
	FirstPublished string             `json:"first_published"`
	UpdatedAt      string             `json:"updated_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches postings from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	boardToken  string
	companyName string
	userAgent   string
	client      *http.Client
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(boardToken, companyName, userAgent string, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		boardToken:  boardToken,
		companyName: companyName,
		userAgent:   userAgent,
		client:      client,
	}
}

// FetchPostings retrieves all jobs from the Greenhouse board, including
// their descriptions (content=true), and flattens them into RawPostings.
func (a *GreenhouseAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, a.boardToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("greenhouse fetch for %s: unexpected status %d", a.boardToken, resp.StatusCode),
		}
	}

	var ghResp greenhouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}

	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		p := model.RawPosting{
			ExternalID:  fmt.Sprintf("%d", gj.ID),
			Title:       gj.Title,
			Company:     a.companyName,
			Location:    gj.Location.Name,
			Description: extractText(gj.Content),
			URL:         gj.AbsoluteURL,
			PostedAt:    parseRFC3339(gj.FirstPublished),
			UpdatedAt:   parseRFC3339(gj.UpdatedAt),
		}
		postings = append(postings, p)
	}

	return postings, nil
}

func parseRFC3339(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
