package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/avasilyev/jobscout/internal/config"
	"github.com/avasilyev/jobscout/internal/model"
)

// Ensure EmailNotifier implements model.Notifier.
var _ model.Notifier = (*EmailNotifier)(nil)

// maxRetryDelay caps the exponential backoff between send attempts.
const maxRetryDelay = 60 * time.Second

// EmailNotifier sends one alert email per match via SMTP.
type EmailNotifier struct {
	smtp   config.SMTPConfig
	policy RetryPolicy
	logger *slog.Logger

	// send is swappable in tests; defaults to a real SMTP dial-and-send.
	send func(ctx context.Context, msg *mail.Msg) error
}

// RetryPolicy controls how failed sends are retried.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
}

// NewEmailNotifier returns a notifier that emails each match to the
// configured recipients.
func NewEmailNotifier(smtp config.SMTPConfig, email config.EmailConfig, logger *slog.Logger) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(smtp.Port),
		mail.WithTimeout(30 * time.Second),
	}
	if email.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if smtp.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(smtp.Username),
			mail.WithPassword(smtp.Password),
		)
	}

	client, err := mail.NewClient(smtp.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	return &EmailNotifier{
		smtp: smtp,
		policy: RetryPolicy{
			MaxRetries:   email.MaxRetries,
			InitialDelay: email.RetryInitialDelay,
			Multiplier:   email.RetryBackoffMultiplier,
		},
		logger: logger,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

// Deliver renders and sends the alert email, retrying failed sends with
// exponential backoff. The outcome carries the attempt count either way.
func (n *EmailNotifier) Deliver(ctx context.Context, d model.CandidateDecision) model.DeliveryOutcome {
	msg, err := n.buildMessage(d)
	if err != nil {
		return model.DeliveryOutcome{Err: err}
	}

	var lastErr error
	delay := n.policy.InitialDelay
	for attempt := 1; attempt <= n.policy.MaxRetries+1; attempt++ {
		if attempt > 1 {
			n.logger.Warn("retrying email send",
				"attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return model.DeliveryOutcome{Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * n.policy.Multiplier)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}

		if lastErr = n.send(ctx, msg); lastErr == nil {
			n.logger.Info("alert email sent",
				"company", d.Posting.Company, "title", d.Posting.Title, "attempts", attempt)
			return model.DeliveryOutcome{Delivered: true, Attempts: attempt}
		}
	}

	return model.DeliveryOutcome{
		Attempts: n.policy.MaxRetries + 1,
		Err:      fmt.Errorf("sending alert email: %w", lastErr),
	}
}

func (n *EmailNotifier) buildMessage(d model.CandidateDecision) (*mail.Msg, error) {
	subject, textBody, htmlBody, err := renderEmail(d)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	from := n.smtp.Username
	if from == "" {
		from = "jobscout@" + n.smtp.Host
	}
	if err := msg.FromFormat(n.smtp.FromName, from); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(n.smtp.Recipients...); err != nil {
		return nil, fmt.Errorf("setting recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

// SendTest delivers a fabricated match so operators can verify the channel
// end to end before trusting it with real alerts.
func SendTest(ctx context.Context, n model.Notifier) error {
	now := time.Now()
	d := model.CandidateDecision{
		Posting: model.Posting{
			Title:       "Test Alert",
			Company:     "jobscout",
			Location:    "Everywhere",
			URL:         "https://example.com",
			FirstSeenAt: now,
			LastSeenAt:  now,
		},
		IsNew: true,
	}
	d.Verdict.IsMatch = true
	d.Verdict.Summary = "Required terms: test"
	d.Verdict.Snippets = []string{"This is a test alert to verify notification delivery."}

	outcome := n.Deliver(ctx, d)
	return outcome.Err
}
