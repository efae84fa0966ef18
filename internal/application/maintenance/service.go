package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gymbuddy-notify/internal/domain"
)

// Report summarises one maintenance run.
type Report struct {
	Scanned  int `json:"scanned"`
	Affected int `json:"affected"`
	Failed   int `json:"failed"`
}

type Service interface {
	// CleanupTokens deactivates device tokens not refreshed for days.
	CleanupTokens(ctx context.Context, days int) (Report, error)
	// CleanupNotifications deletes read notifications older than days.
	CleanupNotifications(ctx context.Context, days int) (Report, error)
	// BackfillKeys sets default translation keys on rows stored without
	// them and keeps their legacy text as fallback content.
	BackfillKeys(ctx context.Context) (Report, error)
}

type tokenStore interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)
	Deactivate(ctx context.Context, token string) error
}

type notificationStore interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error)
	ListMissingKeys(ctx context.Context) ([]domain.LegacyNotification, error)
	Backfill(ctx context.Context, notificationID, titleKey, bodyKey, fallback string) error
}

type ServiceDeps struct {
	Tokens        tokenStore
	Notifications notificationStore
}

type service struct {
	tokens        tokenStore
	notifications notificationStore
	now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	return &service{tokens: deps.Tokens, notifications: deps.Notifications, now: time.Now}
}

func (s *service) cutoff(days int) (time.Time, error) {
	if days < 1 {
		return time.Time{}, fmt.Errorf("days must be at least 1: %w", domain.ErrBadRequest)
	}
	return s.now().UTC().AddDate(0, 0, -days), nil
}

func (s *service) CleanupTokens(ctx context.Context, days int) (Report, error) {
	cutoff, err := s.cutoff(days)
	if err != nil {
		return Report{}, err
	}
	stale, err := s.tokens.ListStale(ctx, cutoff)
	if err != nil {
		return Report{}, fmt.Errorf("list stale tokens: %w", err)
	}

	r := Report{Scanned: len(stale)}
	for _, tok := range stale {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		if err := s.tokens.Deactivate(ctx, tok); err != nil {
			slog.Warn("deactivate stale token failed", "error", err)
			r.Failed++
			continue
		}
		r.Affected++
	}
	slog.Info("stale device tokens deactivated", "cutoff", cutoff, "deactivated", r.Affected, "failed", r.Failed)
	return r, nil
}

func (s *service) CleanupNotifications(ctx context.Context, days int) (Report, error) {
	cutoff, err := s.cutoff(days)
	if err != nil {
		return Report{}, err
	}
	deleted, err := s.notifications.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return Report{Affected: deleted}, fmt.Errorf("delete read notifications: %w", err)
	}
	slog.Info("read notifications deleted", "cutoff", cutoff, "deleted", deleted)
	return Report{Scanned: deleted, Affected: deleted}, nil
}

func (s *service) BackfillKeys(ctx context.Context) (Report, error) {
	rows, err := s.notifications.ListMissingKeys(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list notifications missing keys: %w", err)
	}

	r := Report{Scanned: len(rows)}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		titleKey, bodyKey := row.TitleKey, row.BodyKey
		if titleKey == "" {
			titleKey = row.Category.DefaultTitleKey()
		}
		if bodyKey == "" {
			bodyKey = row.Category.DefaultBodyKey()
		}
		var fallback string
		if row.FallbackContent == "" {
			fallback = strings.TrimSpace(row.Message)
		}
		if err := s.notifications.Backfill(ctx, row.NotificationID, titleKey, bodyKey, fallback); err != nil {
			slog.Warn("backfill notification failed", "notification_id", row.NotificationID, "error", err)
			r.Failed++
			continue
		}
		r.Affected++
	}
	slog.Info("notification keys backfilled", "updated", r.Affected, "failed", r.Failed)
	return r, nil
}
