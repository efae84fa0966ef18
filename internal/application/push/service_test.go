package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/infrastructure/expo"
	"github.com/gymbuddy-notify/internal/pkg/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// memTokens is an in-memory token registry with the same conflict semantics
// as the DynamoDB repo.
type memTokens struct {
	mu   sync.Mutex
	rows map[string]domain.DeviceToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]domain.DeviceToken{}} }

func (m *memTokens) Create(_ context.Context, t *domain.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.Token]; ok {
		return fmt.Errorf("exists: %w", domain.ErrConflict)
	}
	m.rows[t.Token] = *t
	return nil
}

func (m *memTokens) GetByToken(_ context.Context, token string) (*domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memTokens) Rebind(_ context.Context, t *domain.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[t.Token]
	row.UserID, row.Platform, row.Locale, row.IsActive = t.UserID, t.Platform, t.Locale, true
	m.rows[t.Token] = row
	return nil
}

func (m *memTokens) ListActiveByUser(_ context.Context, userID string) ([]domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeviceToken
	for _, t := range m.rows {
		if t.UserID == userID && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTokens) Deactivate(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[token]
	if !ok {
		return domain.ErrNotFound
	}
	t.IsActive = false
	m.rows[token] = t
	return nil
}

func (m *memTokens) DeactivateForUser(_ context.Context, token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[token]
	if !ok || t.UserID != userID {
		return domain.ErrNotFound
	}
	t.IsActive = false
	m.rows[token] = t
	return nil
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fakeGateway records batches and answers with tickets from reply.
type fakeGateway struct {
	mu      sync.Mutex
	batches [][]expo.Message
	reply   func(msg expo.Message) expo.Ticket
	err     error
}

func (g *fakeGateway) SendBatch(_ context.Context, msgs []expo.Message) ([]expo.Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.batches = append(g.batches, msgs)
	if g.err != nil {
		return nil, g.err
	}
	tickets := make([]expo.Ticket, len(msgs))
	for i, m := range msgs {
		if g.reply != nil {
			tickets[i] = g.reply(m)
		} else {
			tickets[i] = expo.Ticket{Status: "ok", ID: "ticket-" + m.To}
		}
	}
	return tickets, nil
}

type mockGate struct{ mock.Mock }

func (m *mockGate) ShouldDeliver(ctx context.Context, userID string, category domain.Category, channel domain.Channel) bool {
	return m.Called(ctx, userID, category, channel).Bool(0)
}

// --- helpers ---

func allowAll() *mockGate {
	g := &mockGate{}
	g.On("ShouldDeliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true)
	return g
}

func translator() *i18n.Translator {
	return i18n.New(map[string]map[string]string{
		"en": {
			"notification.friend_request.title": "New friend request",
			"notification.friend_request.body":  "{sender_name} wants to be your friend",
		},
		"fr": {
			"notification.friend_request.title": "Nouvelle demande d'ami",
		},
	})
}

func newSvc(tokens tokenStore, gw gateway, g gate) Service {
	return NewService(ServiceDeps{Tokens: tokens, Gateway: gw, Gate: g, Translator: translator()})
}

func tok(i int) string { return fmt.Sprintf("ExponentPushToken[device-%03d]", i) }

func seed(t *testing.T, store *memTokens, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Create(context.Background(), &domain.DeviceToken{
			Token: tok(i), UserID: userID, IsActive: true, Platform: domain.PlatformIOS,
		}))
	}
}

// --- Register ---

func TestRegister_RejectsMalformedTokens(t *testing.T) {
	bad := []string{
		"",
		"abc",
		"ExponentPushToken[abc",
		"ExponentPushToken[]",
		"FooPushToken[abc]",
		"exponentpushtoken[abc]",
		"[ExponentPushToken[abc]",
	}
	for _, token := range bad {
		t.Run(token, func(t *testing.T) {
			store := newMemTokens()
			svc := newSvc(store, &fakeGateway{}, allowAll())

			_, err := svc.Register(context.Background(), "user-1", domain.RegisterTokenRequest{
				Token: token, Platform: domain.PlatformIOS,
			})

			assert.ErrorIs(t, err, domain.ErrInvalidToken)
			assert.ErrorIs(t, err, domain.ErrBadRequest)
			assert.Zero(t, store.count())
		})
	}
}

func TestRegister_AcceptsBothPrefixes(t *testing.T) {
	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{}, allowAll())

	for _, token := range []string{"ExponentPushToken[aaa]", "ExpoPushToken[bbb]"} {
		got, err := svc.Register(context.Background(), "user-1", domain.RegisterTokenRequest{
			Token: token, Platform: domain.PlatformAndroid, Locale: "fr-FR",
		})
		require.NoError(t, err)
		assert.True(t, got.IsActive)
		assert.Equal(t, "user-1", got.UserID)
		assert.NotEmpty(t, got.TokenID)
	}
	assert.Equal(t, 2, store.count())
}

func TestRegister_RejectsBadPlatform(t *testing.T) {
	store := newMemTokens()
	_, err := newSvc(store, &fakeGateway{}, allowAll()).Register(context.Background(), "user-1",
		domain.RegisterTokenRequest{Token: tok(1), Platform: "blackberry"})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Zero(t, store.count())
}

func TestRegister_RebindsToLastUser(t *testing.T) {
	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{}, allowAll())
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-1", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
	require.NoError(t, err)
	got, err := svc.Register(ctx, "user-2", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
	require.NoError(t, err)

	assert.Equal(t, "user-2", got.UserID)
	assert.Equal(t, 1, store.count())
	u1, _ := svc.Tokens(ctx, "user-1")
	u2, _ := svc.Tokens(ctx, "user-2")
	assert.Empty(t, u1)
	assert.Len(t, u2, 1)
}

func TestRegister_RebindLogsPreviousAndNewOwner(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{}, allowAll())
	ctx := context.Background()

	first, err := svc.Register(ctx, "user-1", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "user-2", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "device token re-bound")
	assert.Contains(t, out, "previous_user_id=user-1")
	assert.Contains(t, out, "user_id=user-2")
	assert.Contains(t, out, "token_id="+first.TokenID)
}

func TestRegister_SameOwnerDoesNotLogRebind(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{}, allowAll())
	ctx := context.Background()

	for range 2 {
		_, err := svc.Register(ctx, "user-1", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
		require.NoError(t, err)
	}
	assert.NotContains(t, buf.String(), "re-bound")
}

func TestRegister_ReactivatesOwnToken(t *testing.T) {
	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{}, allowAll())
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-1", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
	require.NoError(t, err)
	require.NoError(t, svc.Unregister(ctx, "user-1", tok(1)))

	got, err := svc.Register(ctx, "user-1", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformWeb})
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, domain.PlatformWeb, got.Platform)
}

func TestRegister_ConcurrentSameTokenNeverConflicts(t *testing.T) {
	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{}, allowAll())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), fmt.Sprintf("user-%d", i%2),
				domain.RegisterTokenRequest{Token: tok(7), Platform: domain.PlatformIOS})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.count())
}

func TestUnregister_ForeignTokenNotFound(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 1)

	err := newSvc(store, &fakeGateway{}, allowAll()).Unregister(context.Background(), "user-2", tok(0))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	row, _ := store.GetByToken(context.Background(), tok(0))
	assert.True(t, row.IsActive)
}

// --- Send ---

func TestSend_GatedOffAttemptsNothing(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 2)
	gw := &fakeGateway{}
	g := &mockGate{}
	g.On("ShouldDeliver", mock.Anything, "user-1", domain.CategoryLike, domain.ChannelPush).Return(false)

	ok := newSvc(store, gw, g).Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryLike, Title: "t", Body: "b",
	})

	assert.False(t, ok)
	assert.Empty(t, gw.batches)
}

func TestSend_NoTokensFailsFast(t *testing.T) {
	gw := &fakeGateway{}
	ok := newSvc(newMemTokens(), gw, allowAll()).Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryLike, Title: "t", Body: "b",
	})

	assert.False(t, ok)
	assert.Empty(t, gw.batches)
}

func TestSend_BatchesOf100(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 150)
	gw := &fakeGateway{}

	ok := newSvc(store, gw, allowAll()).Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryWorkoutReminder, Title: "t", Body: "b",
	})

	assert.True(t, ok)
	require.Len(t, gw.batches, 2)
	assert.Len(t, gw.batches[0], 100)
	assert.Len(t, gw.batches[1], 50)
	for _, b := range gw.batches {
		assert.LessOrEqual(t, len(b), BatchSize)
	}
}

func TestSend_AttachesCategoryTimestampAndData(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 1)
	gw := &fakeGateway{}

	newSvc(store, gw, allowAll()).Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryLike, Priority: domain.PriorityUrgent,
		Title: "t", Body: "b", Data: map[string]any{"post_id": "p1"},
	})

	require.Len(t, gw.batches, 1)
	msg := gw.batches[0][0]
	assert.Equal(t, "like", msg.Data["category"])
	assert.NotEmpty(t, msg.Data["timestamp"])
	assert.Equal(t, "p1", msg.Data["post_id"])
	assert.Equal(t, "high", msg.Priority)
}

func TestSend_TranslatesKeysUnlessLiteralGiven(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 1)
	gw := &fakeGateway{}
	svc := newSvc(store, gw, allowAll())

	svc.Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryFriendRequest, Language: "fr",
		TitleKey: "notification.friend_request.title", BodyKey: "notification.friend_request.body",
		Params: map[string]string{"sender_name": "Alice"},
	})
	svc.Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryFriendRequest, Language: "fr",
		Title: "Literal", Body: "Text", TitleKey: "notification.friend_request.title",
	})

	require.Len(t, gw.batches, 2)
	assert.Equal(t, "Nouvelle demande d'ami", gw.batches[0][0].Title)
	assert.Equal(t, "Alice wants to be your friend", gw.batches[0][0].Body)
	assert.Equal(t, "Literal", gw.batches[1][0].Title)
	assert.Equal(t, "Text", gw.batches[1][0].Body)
}

func TestSend_GatewayErrorIsSoftFailure(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 3)
	gw := &fakeGateway{err: errors.New("503 from gateway")}

	ok := newSvc(store, gw, allowAll()).Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryLike, Title: "t", Body: "b",
	})

	assert.False(t, ok)
	tokens, _ := store.ListActiveByUser(context.Background(), "user-1")
	assert.Len(t, tokens, 3)
}

func TestSend_PartialSuccessIsTrue(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 2)
	gw := &fakeGateway{reply: func(m expo.Message) expo.Ticket {
		if m.To == tok(0) {
			return expo.Ticket{Status: "error", Details: expo.TicketDetails{Error: "MessageRateExceeded"}}
		}
		return expo.Ticket{Status: "ok"}
	}}

	ok := newSvc(store, gw, allowAll()).Send(context.Background(), SendInput{
		UserID: "user-1", Category: domain.CategoryLike, Title: "t", Body: "b",
	})

	assert.True(t, ok)
	tokens, _ := store.ListActiveByUser(context.Background(), "user-1")
	assert.Len(t, tokens, 2, "only DeviceNotRegistered deactivates")
}

func TestSend_DeviceNotRegisteredDeactivatesToken(t *testing.T) {
	store := newMemTokens()
	svc := newSvc(store, &fakeGateway{reply: func(m expo.Message) expo.Ticket {
		return expo.Ticket{Status: "error", Message: "not registered",
			Details: expo.TicketDetails{Error: expo.ErrorDeviceNotRegistered}}
	}}, allowAll())
	ctx := context.Background()

	_, err := svc.Register(ctx, "user-1", domain.RegisterTokenRequest{Token: tok(1), Platform: domain.PlatformIOS})
	require.NoError(t, err)
	before, err := svc.Tokens(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, before, 1)

	ok := svc.Send(ctx, SendInput{UserID: "user-1", Category: domain.CategoryLike, Title: "t", Body: "b"})
	assert.False(t, ok)

	row, err := store.GetByToken(ctx, tok(1))
	require.NoError(t, err)
	assert.False(t, row.IsActive)
	after, err := svc.Tokens(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, after)
}

// --- Deliver ---

func TestDeliver_UsesResolvedPreferencesAndLanguage(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 1)
	gw := &fakeGateway{}
	g := &mockGate{}
	svc := newSvc(store, gw, g)

	out := svc.Deliver(context.Background(), &domain.Delivery{
		Notification: &domain.Notification{
			NotificationID: "n-1", UserID: "user-1", Category: domain.CategoryFriendRequest,
			TitleKey: "notification.friend_request.title", BodyKey: "notification.friend_request.body",
			TranslationParams: map[string]string{"sender_name": "Bob"},
			Related:           &domain.ObjectRef{Kind: domain.KindPost, ID: "p-9"},
		},
		Preference: domain.DefaultPreference("user-1"),
		Language:   "fr",
	})

	assert.Equal(t, domain.DeliveryDelivered, out.Status)
	require.Len(t, gw.batches, 1)
	msg := gw.batches[0][0]
	assert.Equal(t, "Nouvelle demande d'ami", msg.Title)
	assert.Equal(t, "n-1", msg.Data["notification_id"])
	assert.Equal(t, "p-9", msg.Data["related_id"])
	g.AssertNotCalled(t, "ShouldDeliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliver_PushDisabledSkips(t *testing.T) {
	store := newMemTokens()
	seed(t, store, "user-1", 1)
	gw := &fakeGateway{}
	pref := domain.DefaultPreference("user-1")
	pref.PushNotificationsEnabled = false

	out := newSvc(store, gw, allowAll()).Deliver(context.Background(), &domain.Delivery{
		Notification: &domain.Notification{UserID: "user-1", Category: domain.CategoryLike},
		Preference:   pref,
	})

	assert.Equal(t, domain.DeliverySkipped, out.Status)
	assert.Empty(t, gw.batches)
}

func TestDeliver_NoDevicesSkips(t *testing.T) {
	out := newSvc(newMemTokens(), &fakeGateway{}, allowAll()).Deliver(context.Background(), &domain.Delivery{
		Notification: &domain.Notification{UserID: "user-1", Category: domain.CategoryLike},
		Preference:   domain.DefaultPreference("user-1"),
	})
	assert.Equal(t, domain.DeliverySkipped, out.Status)
}
