package postmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/gymbuddy-notify/internal/config"
	"github.com/mrz1836/postmark"
)

var ErrInvalidConfig = errors.New("postmark: invalid config")

// Sender delivers transactional email through the Postmark API.
type Sender struct {
	client *postmark.Client
	from   string
	tag    string
}

// NewSender requires both Postmark tokens and a sender address.
func NewSender(cfg *config.Config) (*Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_ACCOUNT_TOKEN is required", ErrInvalidConfig)
	}
	if cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("%w: SMTP_FROM is required", ErrInvalidConfig)
	}
	return &Sender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:   cfg.SMTPFrom,
		tag:    "notification",
	}, nil
}

func (s *Sender) SendEmail(ctx context.Context, to, subject, body string) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		To:         to,
		Subject:    subject,
		Tag:        s.tag,
		TextBody:   body,
		TrackOpens: true,
	})
	if err != nil {
		return fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
