package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/infrastructure/expo"
	"github.com/gymbuddy-notify/internal/observability/metrics"
	"github.com/gymbuddy-notify/internal/pkg/i18n"
	"github.com/gymbuddy-notify/internal/pkg/id"
	"github.com/gymbuddy-notify/internal/pkg/validate"
)

// BatchSize is the number of messages submitted per gateway request.
const BatchSize = expo.MaxBatchSize

// SendInput is a push for every active device of one user. Literal Title and
// Body win over TitleKey and BodyKey when both are set.
type SendInput struct {
	UserID   string
	Category domain.Category
	Priority domain.Priority
	Title    string
	Body     string
	TitleKey string
	BodyKey  string
	Params   map[string]string
	Data     map[string]any
	Language string
}

type Service interface {
	// Register validates and upserts a device token for userID. A token
	// already bound to another user is re-bound; the last registration wins.
	Register(ctx context.Context, userID string, req domain.RegisterTokenRequest) (*domain.DeviceToken, error)
	// Unregister deactivates the caller's token. It is never deleted.
	Unregister(ctx context.Context, userID, token string) error
	Tokens(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	// Send reports whether at least one device accepted the push. Gateway
	// failures are logged, never returned.
	Send(ctx context.Context, in SendInput) bool
	// Deliver sends a persisted notification; it is the orchestrator's
	// entry point and relies on the preferences already in d.
	Deliver(ctx context.Context, d *domain.Delivery) domain.DeliveryOutcome
	Name() domain.Channel
}

type tokenStore interface {
	Create(ctx context.Context, t *domain.DeviceToken) error
	GetByToken(ctx context.Context, token string) (*domain.DeviceToken, error)
	Rebind(ctx context.Context, t *domain.DeviceToken) error
	ListActiveByUser(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	Deactivate(ctx context.Context, token string) error
	DeactivateForUser(ctx context.Context, token, userID string) error
}

type gateway interface {
	SendBatch(ctx context.Context, messages []expo.Message) ([]expo.Ticket, error)
}

type gate interface {
	ShouldDeliver(ctx context.Context, userID string, category domain.Category, channel domain.Channel) bool
}

type ServiceDeps struct {
	Tokens     tokenStore
	Gateway    gateway
	Gate       gate
	Translator *i18n.Translator
}

type service struct {
	tokens     tokenStore
	gateway    gateway
	gate       gate
	translator *i18n.Translator
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	return &service{
		tokens:     deps.Tokens,
		gateway:    deps.Gateway,
		gate:       deps.Gate,
		translator: deps.Translator,
		now:        time.Now,
	}
}

func (s *service) Name() domain.Channel { return domain.ChannelPush }

func (s *service) Register(ctx context.Context, userID string, req domain.RegisterTokenRequest) (*domain.DeviceToken, error) {
	if !domain.ValidPushToken(req.Token) {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, domain.ErrBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &domain.DeviceToken{
		TokenID:    id.New(),
		UserID:     userID,
		Token:      req.Token,
		Platform:   req.Platform,
		Locale:     req.Locale,
		IsActive:   true,
		DeviceInfo: req.DeviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.tokens.Create(ctx, t)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("create device token: %w", err)
	}

	// The token exists already, possibly created by a concurrent request.
	prev, err := s.tokens.GetByToken(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("load device token: %w", err)
	}
	previousOwner := prev.UserID
	if err := s.tokens.Rebind(ctx, t); err != nil {
		return nil, fmt.Errorf("rebind device token: %w", err)
	}
	existing, err := s.tokens.GetByToken(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("reload device token: %w", err)
	}
	if previousOwner != userID {
		slog.Info("device token re-bound",
			"token_id", existing.TokenID,
			"previous_user_id", previousOwner,
			"user_id", userID,
		)
	}
	return existing, nil
}

func (s *service) Unregister(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("token is required: %w", domain.ErrBadRequest)
	}
	return s.tokens.DeactivateForUser(ctx, token, userID)
}

func (s *service) Tokens(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	return s.tokens.ListActiveByUser(ctx, userID)
}

func (s *service) Send(ctx context.Context, in SendInput) bool {
	if !s.gate.ShouldDeliver(ctx, in.UserID, in.Category, domain.ChannelPush) {
		return false
	}
	res := s.dispatch(ctx, in)
	return res.sent > 0
}

func (s *service) Deliver(ctx context.Context, d *domain.Delivery) domain.DeliveryOutcome {
	n := d.Notification
	out := domain.DeliveryOutcome{Channel: domain.ChannelPush}
	if !d.Preference.Allows(domain.ChannelPush, n.Category) {
		out.Status = domain.DeliverySkipped
		out.Detail = "disabled by preferences"
		return out
	}

	data := map[string]any{"notification_id": n.NotificationID}
	if n.Related != nil {
		data["related_kind"] = string(n.Related.Kind)
		data["related_id"] = n.Related.ID
	}
	res := s.dispatch(ctx, SendInput{
		UserID:   n.UserID,
		Category: n.Category,
		Priority: n.Priority,
		TitleKey: n.TitleKey,
		BodyKey:  n.BodyKey,
		Params:   n.TranslationParams,
		Data:     data,
		Language: d.Language,
	})
	switch {
	case res.devices == 0:
		out.Status = domain.DeliverySkipped
		out.Detail = "no active devices"
	case res.sent == 0:
		out.Status = domain.DeliveryFailed
		out.Detail = fmt.Sprintf("0/%d devices accepted", res.devices)
	default:
		out.Status = domain.DeliveryDelivered
		out.Detail = fmt.Sprintf("%d/%d devices accepted", res.sent, res.devices)
	}
	return out
}

type dispatchResult struct {
	devices int
	sent    int
}

func (s *service) dispatch(ctx context.Context, in SendInput) dispatchResult {
	tokens, err := s.tokens.ListActiveByUser(ctx, in.UserID)
	if err != nil {
		slog.Warn("push token lookup failed", "user_id", in.UserID, "error", err)
		return dispatchResult{}
	}
	if len(tokens) == 0 {
		return dispatchResult{}
	}

	title, body := in.Title, in.Body
	if title == "" || body == "" {
		lang := in.Language
		if lang == "" {
			lang = s.translator.DefaultLanguage()
		}
		if title == "" && in.TitleKey != "" {
			title = s.translator.Translate(in.TitleKey, lang, in.Params)
		}
		if body == "" && in.BodyKey != "" {
			body = s.translator.Translate(in.BodyKey, lang, in.Params)
		}
	}

	messages := s.buildMessages(tokens, title, body, in)
	res := dispatchResult{devices: len(messages)}
	for start := 0; start < len(messages); start += BatchSize {
		end := min(start+BatchSize, len(messages))
		res.sent += s.submit(ctx, in.UserID, messages[start:end])
	}
	return res
}

func (s *service) buildMessages(tokens []domain.DeviceToken, title, body string, in SendInput) []expo.Message {
	ts := s.now().UTC().Format(time.RFC3339)
	messages := make([]expo.Message, 0, len(tokens))
	for _, t := range tokens {
		if !domain.ValidPushToken(t.Token) {
			continue
		}
		data := make(map[string]any, len(in.Data)+2)
		for k, v := range in.Data {
			data[k] = v
		}
		data["category"] = string(in.Category)
		data["timestamp"] = ts
		messages = append(messages, expo.Message{
			To:       t.Token,
			Title:    title,
			Body:     body,
			Data:     data,
			Sound:    "default",
			Priority: gatewayPriority(in.Priority),
		})
	}
	return messages
}

// submit sends one batch and returns how many tickets came back ok. Tokens
// the gateway reports as DeviceNotRegistered are deactivated.
func (s *service) submit(ctx context.Context, userID string, batch []expo.Message) int {
	tickets, err := s.gateway.SendBatch(ctx, batch)
	if err != nil {
		slog.Warn("push batch failed", "user_id", userID, "size", len(batch), "error", err)
		metrics.PushTickets.WithLabelValues("error").Add(float64(len(batch)))
		return 0
	}
	sent := 0
	for i, t := range tickets {
		if t.OK() {
			sent++
			metrics.PushTickets.WithLabelValues("ok").Inc()
			continue
		}
		metrics.PushTickets.WithLabelValues("error").Inc()
		slog.Warn("push ticket error", "user_id", userID, "message", t.Message, "reason", t.Details.Error)
		if t.DeviceNotRegistered() && i < len(batch) {
			if err := s.tokens.Deactivate(ctx, batch[i].To); err != nil {
				slog.Warn("deactivate device token failed", "user_id", userID, "error", err)
				continue
			}
			metrics.TokensDeactivated.Inc()
		}
	}
	return sent
}

func gatewayPriority(p domain.Priority) string {
	switch p {
	case domain.PriorityHigh, domain.PriorityUrgent:
		return "high"
	default:
		return "default"
	}
}
