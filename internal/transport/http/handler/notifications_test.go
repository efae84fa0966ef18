package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gymbuddy-notify/internal/application/notification"
	"github.com/gymbuddy-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) Create(ctx context.Context, in notification.CreateInput) (*domain.Notification, error) {
	args := m.Called(ctx, in)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) BulkCreate(ctx context.Context, recipients []string, in notification.CreateInput) []*domain.Notification {
	args := m.Called(ctx, recipients, in)
	out, _ := args.Get(0).([]*domain.Notification)
	return out
}

func (m *mockNotificationSvc) Get(ctx context.Context, id, userID string) (*domain.Notification, error) {
	args := m.Called(ctx, id, userID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) List(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.Notification, string, error) {
	args := m.Called(ctx, userID, f)
	items, _ := args.Get(0).([]domain.Notification)
	return items, args.String(1), args.Error(2)
}

func (m *mockNotificationSvc) Counts(ctx context.Context, userID string) (*domain.NotificationCounts, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(*domain.NotificationCounts)
	return c, args.Error(1)
}

func (m *mockNotificationSvc) MarkAsRead(ctx context.Context, id, userID string) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotificationSvc) MarkAsSeen(ctx context.Context, id, userID string) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotificationSvc) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationSvc) MarkAllAsSeen(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationSvc) DeliveryLogs(ctx context.Context, id string) ([]domain.DeliveryLog, error) {
	args := m.Called(ctx, id)
	logs, _ := args.Get(0).([]domain.DeliveryLog)
	return logs, args.Error(1)
}

// --- List ---

func TestList_MissingClaims(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationSvc{})
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestList_UnreadFilterAndCursor(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	isRead := false
	svc.On("List", mock.Anything, "u1", domain.NotificationFilter{IsRead: &isRead, Limit: 10, Cursor: "abc"}).
		Return([]domain.Notification{{NotificationID: "n1", UserID: "u1"}}, "next-1", nil)
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/notifications?unread=true&limit=10&cursor=abc", "u1", domain.RoleUser, nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.List), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var page NotificationPage
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "next-1", page.NextCursor)
	svc.AssertExpectations(t)
}

func TestList_EmptyIsArray(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("List", mock.Anything, "u1", mock.Anything).Return(nil, "", nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())
}

func TestList_BadQuery(t *testing.T) {
	for _, target := range []string{"/v1/notifications?unread=maybe", "/v1/notifications?limit=-3"} {
		h := NewNotificationHandler(&mockNotificationSvc{})
		rr := httptest.NewRecorder()
		h.List(rr, withClaims(httptest.NewRequest(http.MethodGet, target, nil), "u1", domain.RoleUser))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestList_BadCursorMapsTo422(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("List", mock.Anything, "u1", mock.Anything).Return(nil, "", errors.Join(errors.New("decode cursor"), domain.ErrBadRequest))
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications?cursor=not-base64!", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

// --- Counts / Get ---

func TestCounts(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Counts", mock.Anything, "u1").Return(&domain.NotificationCounts{Unread: 4, Unseen: 7}, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Counts(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/counts", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"unread":4,"unseen":7}`, rr.Body.String())
}

func TestGet_ForeignNotification(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Get", mock.Anything, "n1", "u2").Return(nil, domain.ErrForbidden)
	h := NewNotificationHandler(svc)

	r := withChiID(withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/n1", nil), "u2", domain.RoleUser), "n1")
	rr := httptest.NewRecorder()
	h.Get(rr, r)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestGet_StoreFailureHidesCause(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Get", mock.Anything, "n1", "u1").Return(nil, errors.New("dynamo: connection reset"))
	h := NewNotificationHandler(svc)

	r := withChiID(withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/n1", nil), "u1", domain.RoleUser), "n1")
	rr := httptest.NewRecorder()
	h.Get(rr, r)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "dynamo")
}

// --- read state ---

func TestMarkAsRead(t *testing.T) {
	tests := []struct {
		name    string
		updated bool
		want    int
	}{
		{"owned notification", true, http.StatusOK},
		{"missing or foreign", false, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNotificationSvc{}
			svc.On("MarkAsRead", mock.Anything, "n1", "u1").Return(tt.updated, nil)
			h := NewNotificationHandler(svc)

			r := withChiID(withClaims(httptest.NewRequest(http.MethodPut, "/v1/notifications/n1/read", nil), "u1", domain.RoleUser), "n1")
			rr := httptest.NewRecorder()
			h.MarkAsRead(rr, r)

			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestMarkAsSeen(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkAsSeen", mock.Anything, "n1", "u1").Return(true, nil)
	h := NewNotificationHandler(svc)

	r := withChiID(withClaims(httptest.NewRequest(http.MethodPut, "/v1/notifications/n1/seen", nil), "u1", domain.RoleUser), "n1")
	rr := httptest.NewRecorder()
	h.MarkAsSeen(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestMarkAllAsRead_ReportsCount(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkAllAsRead", mock.Anything, "u1").Return(0, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.MarkAllAsRead(rr, withClaims(httptest.NewRequest(http.MethodPut, "/v1/notifications/read-all", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"updated":0}`, rr.Body.String())
}

func TestMarkAllAsSeen(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkAllAsSeen", mock.Anything, "u1").Return(3, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.MarkAllAsSeen(rr, withClaims(httptest.NewRequest(http.MethodPut, "/v1/notifications/seen-all", nil), "u1", domain.RoleUser))

	assert.JSONEq(t, `{"updated":3}`, rr.Body.String())
}

func TestDeliveryLogs(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("DeliveryLogs", mock.Anything, "n1").Return([]domain.DeliveryLog{
		{NotificationID: "n1", Channel: domain.ChannelPush, Status: domain.DeliverySkipped},
	}, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.DeliveryLogs(rr, withChiID(httptest.NewRequest(http.MethodGet, "/v1/notifications/n1/deliveries", nil), "n1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var logs []domain.DeliveryLog
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&logs))
	require.Len(t, logs, 1)
	assert.Equal(t, domain.DeliverySkipped, logs[0].Status)
}
