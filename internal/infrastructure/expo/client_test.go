package expo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBatch_ParsesTickets(t *testing.T) {
	var got []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"t-1"},
			{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithAccessToken("secret"))
	tickets, err := c.SendBatch(context.Background(), []Message{
		{To: "ExponentPushToken[a]", Title: "hi"},
		{To: "ExponentPushToken[b]", Title: "hi"},
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, tickets, 2)
	assert.True(t, tickets[0].OK())
	assert.Equal(t, "t-1", tickets[0].ID)
	assert.False(t, tickets[1].OK())
	assert.True(t, tickets[1].DeviceNotRegistered())
}

func TestSendBatch_RejectsOversizedBatch(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	msgs := make([]Message, MaxBatchSize+1)
	_, err := NewClient(srv.URL).SendBatch(context.Background(), msgs)

	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.False(t, called)
}

func TestSendBatch_EmptyIsNoop(t *testing.T) {
	tickets, err := NewClient("http://127.0.0.1:0").SendBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, tickets)
}

func TestSendBatch_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SendBatch(context.Background(), []Message{{To: "ExpoPushToken[x]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSendBatch_RequestLevelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"code":"PUSH_TOO_MANY_EXPERIENCE_IDS","message":"mixed projects"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SendBatch(context.Background(), []Message{{To: "ExpoPushToken[x]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUSH_TOO_MANY_EXPERIENCE_IDS")
}

func TestSendBatch_TicketCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SendBatch(context.Background(), []Message{{To: "a"}, {To: "b"}})
	assert.Error(t, err)
}

func TestSendBatch_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRateLimit(0.001))
	_, err := c.SendBatch(context.Background(), []Message{{To: "a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.SendBatch(ctx, []Message{{To: "a"}})
	assert.Error(t, err)
}
