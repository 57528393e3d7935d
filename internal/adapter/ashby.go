package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/avasilyev/jobscout/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Location        string `json:"location"`
	DescriptionHTML string `json:"descriptionHtml"`
	JobURL          string `json:"jobUrl"`
	PublishedAt     string `json:"publishedAt"`
	IsListed        bool   `json:"isListed"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches postings from the Ashby public job board API.
type AshbyAdapter struct {
	boardToken  string
	companyName string
	userAgent   string
	client      *http.Client
}

// NewAshbyAdapter creates a new adapter for an Ashby job board.
func NewAshbyAdapter(boardToken, companyName, userAgent string, client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{
		boardToken:  boardToken,
		companyName: companyName,
		userAgent:   userAgent,
		client:      client,
	}
}

// FetchPostings retrieves all listed jobs from the Ashby job board,
// including descriptions, and flattens them into RawPostings. Unlisted
// postings are skipped.
func (a *AshbyAdapter) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?includeCompensation=true", ashbyBaseURL, a.boardToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", a.boardToken, err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", a.boardToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("ashby fetch for %s: unexpected status %d", a.boardToken, resp.StatusCode),
		}
	}

	var ashbyResp ashbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ashbyResp); err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", a.boardToken, err)
	}

	postings := make([]model.RawPosting, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed {
			continue
		}

		externalID := aj.ID
		if externalID == "" {
			externalID = aj.JobURL
		}

		p := model.RawPosting{
			ExternalID:  externalID,
			Title:       aj.Title,
			Company:     a.companyName,
			Location:    aj.Location,
			Description: extractText(aj.DescriptionHTML),
			URL:         aj.JobURL,
			PostedAt:    parseRFC3339(aj.PublishedAt),
		}
		postings = append(postings, p)
	}

	return postings, nil
}
