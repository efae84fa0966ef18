package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gymbuddy-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPreferenceSvc struct{ mock.Mock }

func (m *mockPreferenceSvc) ShouldDeliver(ctx context.Context, userID string, category domain.Category, channel domain.Channel) bool {
	return m.Called(ctx, userID, category, channel).Bool(0)
}

func (m *mockPreferenceSvc) Load(ctx context.Context, userID string) *domain.NotificationPreference {
	return m.Called(ctx, userID).Get(0).(*domain.NotificationPreference)
}

func (m *mockPreferenceSvc) Get(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*domain.NotificationPreference)
	return p, args.Error(1)
}

func (m *mockPreferenceSvc) Update(ctx context.Context, userID string, req domain.UpdatePreferenceRequest) (*domain.NotificationPreference, error) {
	args := m.Called(ctx, userID, req)
	p, _ := args.Get(0).(*domain.NotificationPreference)
	return p, args.Error(1)
}

func TestPreferences_Get(t *testing.T) {
	svc := &mockPreferenceSvc{}
	svc.On("Get", mock.Anything, "u1").Return(domain.DefaultPreference("u1"), nil)
	h := NewPreferenceHandler(svc)

	rr := httptest.NewRecorder()
	h.Get(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/preferences", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got domain.NotificationPreference
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.True(t, got.PushNotificationsEnabled)
}

func TestPreferences_UpdatePassesPartialPatch(t *testing.T) {
	svc := &mockPreferenceSvc{}
	svc.On("Update", mock.Anything, "u1", mock.MatchedBy(func(req domain.UpdatePreferenceRequest) bool {
		return req.PushNotificationsEnabled != nil && !*req.PushNotificationsEnabled &&
			req.EmailNotificationsEnabled == nil &&
			req.Email[domain.BucketLikes] == false && len(req.Email) == 1
	})).Return(domain.DefaultPreference("u1"), nil)
	h := NewPreferenceHandler(svc)

	body := `{"push_notifications_enabled":false,"email":{"likes":false}}`
	rr := httptest.NewRecorder()
	h.Update(rr, withClaims(httptest.NewRequest(http.MethodPatch, "/v1/preferences", strings.NewReader(body)), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestPreferences_UpdateValidationError(t *testing.T) {
	svc := &mockPreferenceSvc{}
	svc.On("Update", mock.Anything, "u1", mock.Anything).Return(nil, domain.ErrBadRequest)
	h := NewPreferenceHandler(svc)

	rr := httptest.NewRecorder()
	h.Update(rr, withClaims(httptest.NewRequest(http.MethodPatch, "/v1/preferences", strings.NewReader(`{"notification_language":"xx"}`)), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
