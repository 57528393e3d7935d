package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avasilyev/jobscout/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends match alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each match to Slack.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Deliver posts one Block Kit message. A 429 from Slack is retried once
// after the advertised Retry-After.
func (s *SlackNotifier) Deliver(ctx context.Context, d model.CandidateDecision) model.DeliveryOutcome {
	body, err := json.Marshal(buildPayload(d))
	if err != nil {
		return model.DeliveryOutcome{Attempts: 0, Err: fmt.Errorf("marshal slack payload: %w", err)}
	}

	attempts := 1
	status, retryAfter, err := s.post(ctx, body)
	if err == nil && status == http.StatusTooManyRequests {
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-ctx.Done():
			return model.DeliveryOutcome{Attempts: attempts, Err: ctx.Err()}
		case <-time.After(retryAfter):
		}
		attempts++
		status, _, err = s.post(ctx, body)
	}

	if err != nil {
		return model.DeliveryOutcome{Attempts: attempts, Err: fmt.Errorf("post to slack: %w", err)}
	}
	if status != http.StatusOK {
		return model.DeliveryOutcome{Attempts: attempts, Err: fmt.Errorf("slack returned %d", status)}
	}

	s.logger.Info("slack message sent", "company", d.Posting.Company, "title", d.Posting.Title)
	return model.DeliveryOutcome{Delivered: true, Attempts: attempts}
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (status int, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

func buildPayload(d model.CandidateDecision) slackPayload {
	p := d.Posting

	headline := "New match: " + p.Title
	if !d.IsNew {
		headline = "Updated match: " + p.Title
	}
	if p.Company != "" {
		headline += " at " + p.Company
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: headline},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Company:*\n" + p.Company},
				{Type: "mrkdwn", Text: "*Location:*\n" + p.Location},
			},
		},
	}

	if d.Verdict.Summary != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Why it matched:*\n" + d.Verdict.Summary},
		})
	}

	if len(d.Verdict.Snippets) > 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "_" + strings.Join(d.Verdict.Snippets, "_\n_") + "_"},
		})
	}

	if p.URL != "" {
		blocks = append(blocks, slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View Posting"},
					URL:   p.URL,
					Style: "primary",
				},
			},
		})
	}
	blocks = append(blocks, slackBlock{Type: "divider"})

	return slackPayload{Blocks: blocks}
}
