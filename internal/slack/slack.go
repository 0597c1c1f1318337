package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/navikt/stripe-github-access/internal/notify"
)

const (
	maxRetries  = 2
	postTimeout = 5 * time.Second
)

// baseDelay is a variable so tests can shorten the backoff.
var baseDelay = 500 * time.Millisecond

// AlertClient posts failed collaborator grants to a Slack channel so they are
// not lost behind the 200 returned to Stripe.
type AlertClient struct {
	api       *slack.Client
	channelID string
}

// NewAlertClient creates an AlertClient. Extra options are passed to slack.New.
func NewAlertClient(token, channelID string, options ...slack.Option) (*AlertClient, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("missing required Slack settings: SLACK_TOKEN and SLACK_CHANNEL_ID")
	}
	return &AlertClient{
		api:       slack.New(token, options...),
		channelID: channelID,
	}, nil
}

// doWithRetry retries the provided function with exponential backoff
func (s *AlertClient) doWithRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay * (1 << i)):
		}
	}
	return fmt.Errorf("after %d retries, last error: %w", maxRetries, err)
}

// Report posts an alert for failed grants and ignores successful ones.
func (s *AlertClient) Report(ctx context.Context, grant notify.Grant) {
	if grant.Success {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	err := s.doWithRetry(ctx, func() error {
		_, _, err := s.api.PostMessageContext(ctx, s.channelID,
			slack.MsgOptionText(alertText(grant), false),
			slack.MsgOptionAttachments(alertAttachment(grant)))
		return err
	})
	if err != nil {
		slog.Error("Failed to post Slack alert",
			slog.String("channel", s.channelID),
			slog.String("user", grant.Username),
			slog.Any("error", err))
	}
}

func alertText(grant notify.Grant) string {
	return fmt.Sprintf(":warning: Could not grant `%s` access to %s after payment", grant.Username, grant.Repository)
}

func alertAttachment(grant notify.Grant) slack.Attachment {
	fields := []slack.AttachmentField{
		{Title: "Outcome", Value: string(grant.Outcome), Short: true},
		{Title: "Event", Value: grant.EventID, Short: true},
	}
	if grant.StatusCode != 0 {
		fields = append(fields, slack.AttachmentField{Title: "Status", Value: fmt.Sprintf("%d", grant.StatusCode), Short: true})
	}
	if grant.CustomerEmail != "" {
		fields = append(fields, slack.AttachmentField{Title: "Customer", Value: grant.CustomerEmail, Short: true})
	}
	return slack.Attachment{
		Color:  "danger",
		Text:   grant.Message,
		Fields: fields,
	}
}
