package fallback

import (
	"bkalan/domain"
	"bkalan/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(logs.GetLoggerFromLevel(slog.LevelDebug), server.URL+"/", time.Second)
}

func TestClient_FetchAll(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodGet, r.Method)
		req.Equal(messagesPath, r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"user":"Omar","message":"salut","timestamp":"2026-10-18T08:59:00Z"},
			{"user":"Amina","message":"bonjour","timestamp":"2026-10-18T09:00:00Z"}
		]`))
	})

	messages, err := client.FetchAll(context.Background())

	req.NoError(err)
	req.Equal([]domain.ChatMessage{
		domain.NewUserMessage("Omar", "salut", "2026-10-18T08:59:00Z"),
		domain.NewUserMessage("Amina", "bonjour", "2026-10-18T09:00:00Z"),
	}, messages)
}

func TestClient_FetchAll_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not a list", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"detail":"nope"}`)) }},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			client := newTestClient(t, tt.handler)

			messages, err := client.FetchAll(context.Background())

			req.ErrorIs(err, errors.ErrFetchFailure)
			req.Nil(messages)
		})
	}
}

func TestClient_FetchAll_Unreachable(t *testing.T) {
	req := require.New(t)
	client := NewClient(logs.GetLoggerFromLevel(slog.LevelDebug), "http://127.0.0.1:1", time.Second)

	_, err := client.FetchAll(context.Background())

	req.ErrorIs(err, errors.ErrFetchFailure)
}

func TestClient_Send(t *testing.T) {
	req := require.New(t)
	received := make(chan map[string]string, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	err := client.Send(context.Background(), domain.NewUserMessage("Amina", "hello", "2026-10-18T09:00:00Z"))

	req.NoError(err)
	req.Equal(map[string]string{"user": "Amina", "message": "hello", "timestamp": "2026-10-18T09:00:00Z"}, <-received)
}

func TestClient_Send_Rejected(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	err := client.Send(context.Background(), domain.NewUserMessage("Amina", "hello", "2026-10-18T09:00:00Z"))

	req.ErrorIs(err, errors.ErrDeliveryUncertain)
	req.ErrorIs(err, errors.ErrUnexpectedCode)
}
