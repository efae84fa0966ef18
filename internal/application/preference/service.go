package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/pkg/validate"
)

type Service interface {
	// ShouldDeliver reports whether category may go out over channel for
	// userID. Lookup failures are logged and treated as enabled.
	ShouldDeliver(ctx context.Context, userID string, category domain.Category, channel domain.Channel) bool
	// Load returns the stored preferences or the all-enabled default. It
	// never fails and never writes.
	Load(ctx context.Context, userID string) *domain.NotificationPreference
	Get(ctx context.Context, userID string) (*domain.NotificationPreference, error)
	Update(ctx context.Context, userID string, req domain.UpdatePreferenceRequest) (*domain.NotificationPreference, error)
}

type preferenceStore interface {
	Get(ctx context.Context, userID string) (*domain.NotificationPreference, error)
	Create(ctx context.Context, p *domain.NotificationPreference) error
	Put(ctx context.Context, p *domain.NotificationPreference) error
}

type service struct {
	repo preferenceStore
}

func NewService(repo preferenceStore) Service {
	return &service{repo: repo}
}

func (s *service) ShouldDeliver(ctx context.Context, userID string, category domain.Category, channel domain.Channel) bool {
	return s.Load(ctx, userID).Allows(channel, category)
}

func (s *service) Load(ctx context.Context, userID string) *domain.NotificationPreference {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("preference lookup failed, using defaults", "user_id", userID, "error", err)
		}
		return domain.DefaultPreference(userID)
	}
	return p
}

// Get returns the user's preferences, creating the default record on first
// access.
func (s *service) Get(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	p, err := s.repo.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	p = domain.DefaultPreference(userID)
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.repo.Get(ctx, userID)
		}
		return nil, fmt.Errorf("create preferences: %w", err)
	}
	return p, nil
}

// Update merges req into the stored record. Toggle maps are merged key by key.
func (s *service) Update(ctx context.Context, userID string, req domain.UpdatePreferenceRequest) (*domain.NotificationPreference, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := validate.Buckets(req.Push); err != nil {
		return nil, err
	}
	if err := validate.Buckets(req.Email); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply(p, req)
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

func apply(p *domain.NotificationPreference, req domain.UpdatePreferenceRequest) {
	if req.PushNotificationsEnabled != nil {
		p.PushNotificationsEnabled = *req.PushNotificationsEnabled
	}
	if req.EmailNotificationsEnabled != nil {
		p.EmailNotificationsEnabled = *req.EmailNotificationsEnabled
	}
	p.Push = mergeToggles(p.Push, req.Push)
	p.Email = mergeToggles(p.Email, req.Email)
	if req.QuietHoursStart != nil {
		p.QuietHoursStart = req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		p.QuietHoursEnd = req.QuietHoursEnd
	}
	if req.DigestFrequency != nil {
		p.DigestFrequency = *req.DigestFrequency
	}
	if req.NotificationLanguage != nil {
		p.NotificationLanguage = *req.NotificationLanguage
	}
}

func mergeToggles(dst, src map[domain.Bucket]bool) map[domain.Bucket]bool {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[domain.Bucket]bool, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
