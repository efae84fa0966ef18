package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/observability/metrics"
	"github.com/gymbuddy-notify/internal/pkg/i18n"
	"github.com/gymbuddy-notify/internal/pkg/id"
)

const (
	defaultChannelTimeout = 10 * time.Second
	defaultLogTTL         = 30 * 24 * time.Hour
	defaultPageSize       = 20
	maxPageSize           = 100
)

// CreateInput describes one notification for one recipient. Related wins
// over RelatedRef; RelatedRef is resolved through the record lookup.
type CreateInput struct {
	UserID          string
	Category        domain.Category
	SenderID        string
	Related         domain.RelatedObject
	RelatedRef      *domain.ObjectRef
	Params          map[string]string
	Priority        domain.Priority
	Metadata        map[string]any
	TitleKey        string
	BodyKey         string
	FallbackContent string
}

// Deliverer is one fanout channel. Deliver must report failures in the
// outcome rather than panic, but a panic is contained all the same.
type Deliverer interface {
	Name() domain.Channel
	Deliver(ctx context.Context, d *domain.Delivery) domain.DeliveryOutcome
}

type Service interface {
	// Create persists the notification and fans it out over every channel.
	// Only a persistence failure is returned; channel outcomes are logged.
	Create(ctx context.Context, in CreateInput) (*domain.Notification, error)
	// BulkCreate creates one notification per recipient. A recipient whose
	// persist fails is logged and skipped; there is no rollback.
	BulkCreate(ctx context.Context, recipients []string, in CreateInput) []*domain.Notification
	Get(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	List(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.Notification, string, error)
	Counts(ctx context.Context, userID string) (*domain.NotificationCounts, error)
	// MarkAsRead reports false when the notification does not exist or is
	// not owned by userID.
	MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error)
	MarkAsSeen(ctx context.Context, notificationID, userID string) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	MarkAllAsSeen(ctx context.Context, userID string) (int, error)
	DeliveryLogs(ctx context.Context, notificationID string) ([]domain.DeliveryLog, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.Notification, string, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkSeen(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	MarkAllSeen(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	CountUnseen(ctx context.Context, userID string) (int, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type recordResolver interface {
	Resolve(ctx context.Context, ref domain.ObjectRef) (domain.RelatedObject, error)
}

type deliveryLogStore interface {
	Put(ctx context.Context, l *domain.DeliveryLog) error
	ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryLog, error)
}

type preferenceLoader interface {
	Load(ctx context.Context, userID string) *domain.NotificationPreference
}

type eventPublisher interface {
	PublishCreated(ctx context.Context, n *domain.Notification) error
}

type ServiceDeps struct {
	Repo        notificationStore
	Users       userStore
	Records     recordResolver
	Logs        deliveryLogStore
	Preferences preferenceLoader
	Events      eventPublisher
	Translator  *i18n.Translator
	Channels    []Deliverer

	ChannelTimeout time.Duration
	LogTTL         time.Duration
}

type service struct {
	repo        notificationStore
	users       userStore
	records     recordResolver
	logs        deliveryLogStore
	preferences preferenceLoader
	events      eventPublisher
	translator  *i18n.Translator
	channels    []Deliverer
	timeout     time.Duration
	logTTL      time.Duration
	now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:        deps.Repo,
		users:       deps.Users,
		records:     deps.Records,
		logs:        deps.Logs,
		preferences: deps.Preferences,
		events:      deps.Events,
		translator:  deps.Translator,
		channels:    deps.Channels,
		timeout:     deps.ChannelTimeout,
		logTTL:      deps.LogTTL,
		now:         time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = defaultChannelTimeout
	}
	if s.logTTL <= 0 {
		s.logTTL = defaultLogTTL
	}
	return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("recipient is required: %w", domain.ErrBadRequest)
	}
	if in.Category == "" {
		return nil, fmt.Errorf("category is required: %w", domain.ErrBadRequest)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q: %w", in.Priority, domain.ErrBadRequest)
	}

	related := s.resolveRelated(ctx, in)
	sender := s.lookupUser(ctx, in.SenderID, "sender")

	now := s.now().UTC()
	n := &domain.Notification{
		NotificationID:    id.At(now),
		UserID:            in.UserID,
		Category:          in.Category,
		TitleKey:          in.TitleKey,
		BodyKey:           in.BodyKey,
		TranslationParams: mergeParams(related, sender, in.Params),
		FallbackContent:   in.FallbackContent,
		Metadata:          in.Metadata,
		Priority:          in.Priority,
		CreatedAt:         now,
	}
	if n.TitleKey == "" {
		n.TitleKey = in.Category.DefaultTitleKey()
	}
	if n.BodyKey == "" {
		n.BodyKey = in.Category.DefaultBodyKey()
	}
	if in.SenderID != "" {
		senderID := in.SenderID
		n.SenderID = &senderID
	}
	if related != nil {
		ref := related.Ref()
		n.Related = &ref
	}

	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Category)).Inc()
	if !n.Category.Known() {
		slog.Warn("notification created with unknown category", "notification_id", n.NotificationID, "category", n.Category)
	}

	if s.events != nil {
		if err := s.events.PublishCreated(ctx, n); err != nil {
			slog.Warn("publish notification event failed", "notification_id", n.NotificationID, "error", err)
		}
	}

	s.fanout(ctx, s.buildDelivery(ctx, n, sender))
	return n, nil
}

func (s *service) BulkCreate(ctx context.Context, recipients []string, in CreateInput) []*domain.Notification {
	created := make([]*domain.Notification, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		one := in
		one.UserID = userID
		n, err := s.Create(ctx, one)
		if err != nil {
			slog.Warn("bulk notification skipped", "user_id", userID, "category", in.Category, "error", err)
			continue
		}
		created = append(created, n)
	}
	return created
}

func (s *service) Get(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("notification belongs to another user: %w", domain.ErrForbidden)
	}
	return n, nil
}

func (s *service) List(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.Notification, string, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return s.repo.ListByUser(ctx, userID, f)
}

func (s *service) Counts(ctx context.Context, userID string) (*domain.NotificationCounts, error) {
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	unseen, err := s.repo.CountUnseen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unseen: %w", err)
	}
	return &domain.NotificationCounts{Unread: unread, Unseen: unseen}, nil
}

func (s *service) MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error) {
	return flagResult(s.repo.MarkRead(ctx, notificationID, userID))
}

func (s *service) MarkAsSeen(ctx context.Context, notificationID, userID string) (bool, error) {
	return flagResult(s.repo.MarkSeen(ctx, notificationID, userID))
}

func (s *service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) MarkAllAsSeen(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllSeen(ctx, userID)
}

func (s *service) DeliveryLogs(ctx context.Context, notificationID string) ([]domain.DeliveryLog, error) {
	if s.logs == nil {
		return nil, nil
	}
	return s.logs.ListByNotification(ctx, notificationID)
}

func flagResult(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *service) resolveRelated(ctx context.Context, in CreateInput) domain.RelatedObject {
	if in.Related != nil {
		return in.Related
	}
	if in.RelatedRef == nil {
		return nil
	}
	ref := *in.RelatedRef
	if s.records == nil {
		return domain.GenericRef{Kind: ref.Kind, ID: ref.ID}
	}
	obj, err := s.records.Resolve(ctx, ref)
	if err != nil {
		slog.Warn("related object lookup failed", "kind", ref.Kind, "id", ref.ID, "error", err)
		return domain.GenericRef{Kind: ref.Kind, ID: ref.ID}
	}
	return obj
}

func (s *service) lookupUser(ctx context.Context, userID, role string) *domain.User {
	if userID == "" || s.users == nil {
		return nil
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		slog.Warn("user lookup failed", "role", role, "user_id", userID, "error", err)
		return nil
	}
	return u
}

// mergeParams layers object params, then sender params, then caller params.
func mergeParams(related domain.RelatedObject, sender *domain.User, caller map[string]string) map[string]string {
	params := make(map[string]string)
	if related != nil {
		for k, v := range related.Params() {
			params[k] = v
		}
	}
	if sender != nil {
		params["sender_username"] = sender.Username
		params["sender_name"] = sender.Name()
	}
	for k, v := range caller {
		params[k] = v
	}
	return params
}

func (s *service) buildDelivery(ctx context.Context, n *domain.Notification, sender *domain.User) *domain.Delivery {
	recipient := s.lookupUser(ctx, n.UserID, "recipient")
	var pref *domain.NotificationPreference
	if s.preferences != nil {
		pref = s.preferences.Load(ctx, n.UserID)
	} else {
		pref = domain.DefaultPreference(n.UserID)
	}

	var userLang string
	if recipient != nil {
		userLang = recipient.Language
	}
	return &domain.Delivery{
		Notification: n,
		Recipient:    recipient,
		Sender:       sender,
		Preference:   pref,
		Language:     s.translator.ResolveLanguage(pref.NotificationLanguage, userLang),
	}
}

// fanout runs every channel concurrently and waits for all of them. Each
// channel gets its own deadline detached from the caller's cancellation.
func (s *service) fanout(ctx context.Context, d *domain.Delivery) []domain.DeliveryOutcome {
	outcomes := make([]domain.DeliveryOutcome, len(s.channels))
	var g errgroup.Group
	for i, ch := range s.channels {
		g.Go(func() error {
			outcomes[i] = s.deliver(ctx, ch, d)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *service) deliver(parent context.Context, ch Deliverer, d *domain.Delivery) domain.DeliveryOutcome {
	start := time.Now()
	name := ch.Name()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	done := make(chan domain.DeliveryOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.DeliveryOutcome{Status: domain.DeliveryFailed, Detail: fmt.Sprintf("panic: %v", r)}
			}
		}()
		done <- ch.Deliver(ctx, d)
	}()

	var out domain.DeliveryOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = domain.DeliveryOutcome{Status: domain.DeliveryFailed, Detail: fmt.Sprintf("timed out after %s", s.timeout)}
	}
	out.Channel = name

	attrs := []slog.Attr{
		slog.String("notification_id", d.Notification.NotificationID),
		slog.String("user_id", d.Notification.UserID),
		slog.String("channel", string(name)),
		slog.String("status", string(out.Status)),
		slog.String("detail", out.Detail),
	}
	level := slog.LevelDebug
	if out.Status == domain.DeliveryFailed {
		level = slog.LevelWarn
	}
	slog.LogAttrs(context.Background(), level, "notification channel finished", attrs...)
	metrics.ObserveChannel(string(name), string(out.Status), start)
	s.recordOutcome(parent, d.Notification, out)
	return out
}

func (s *service) recordOutcome(parent context.Context, n *domain.Notification, out domain.DeliveryOutcome) {
	if s.logs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()
	now := s.now().UTC()
	err := s.logs.Put(ctx, &domain.DeliveryLog{
		NotificationID: n.NotificationID,
		Channel:        out.Channel,
		UserID:         n.UserID,
		Status:         out.Status,
		Detail:         out.Detail,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.logTTL).Unix(),
	})
	if err != nil {
		slog.Warn("delivery log write failed", "notification_id", n.NotificationID, "channel", out.Channel, "error", err)
	}
}
