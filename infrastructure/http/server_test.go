package server

import (
	"bkalan/domain"
	"bkalan/domain/event"
	"bkalan/infrastructure/storage"
	"bkalan/moderation"
	"bkalan/observability"
	"bkalan/runtime"
	"bkalan/runtime/workers"
	"bkalan/services"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	url     string
	service *services.ChatService
}

func newTestServer(t *testing.T) testServer {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)
	registry := runtime.NewRegistry()
	broadcasts := make(chan event.Broadcast, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = workers.NewEventFanoutWorker(log, registry, broadcasts, time.Second).Run(ctx) }()

	service := services.NewChatService(log, storage.NewMessageRepository(db, log, nil), moderator,
		registry, workers.NewLocalBroadcaster(broadcasts))
	chatServer := NewChatServer(log, service, observability.NewHealthReporter(), 16, time.Second)
	server := httptest.NewServer(chatServer.Handler())
	t.Cleanup(server.Close)
	return testServer{url: server.URL, service: service}
}

func (s testServer) post(t *testing.T, body string) *http.Response {
	resp, err := http.Post(s.url+"/api/chat/send", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s testServer) history(t *testing.T, query string) []domain.ChatMessage {
	resp, err := http.Get(s.url + "/api/chat/messages" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var messages []domain.ChatMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	return messages
}

func (s testServer) dial(t *testing.T, name string) *websocket.Conn {
	endpoint := "ws" + strings.TrimPrefix(s.url, "http") + "/api/chat/ws/" + url.PathEscape(name)
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) event.Frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame event.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestChatServer_Health(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	resp, err := http.Get(s.url + "/api/health")
	req.NoError(err)
	defer resp.Body.Close()

	var health observability.Health
	req.NoError(json.NewDecoder(resp.Body).Decode(&health))
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("healthy", health.Status)
	req.Zero(health.Live)
}

func TestChatServer_Send_Then_History(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	// Given two posted messages, one with a forbidden word
	resp := s.post(t, `{"user":"Omar","message":"salut","timestamp":"2026-10-18T09:00:00Z"}`)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp = s.post(t, `{"user":"Amina","message":"the badger is here","timestamp":"2026-10-18T09:01:00Z"}`)
	req.Equal(http.StatusOK, resp.StatusCode)

	// Then the history is oldest first, censored, with the client timestamps
	req.Equal([]domain.ChatMessage{
		domain.NewUserMessage("Omar", "salut", "2026-10-18T09:00:00Z"),
		domain.NewUserMessage("Amina", "the ****** is here", "2026-10-18T09:01:00Z"),
	}, s.history(t, ""))

	// And the limit keeps the most recent ones
	limited := s.history(t, "?limit=1")
	req.Len(limited, 1)
	req.Equal("Amina", limited[0].Author)
}

func TestChatServer_Send_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{"user":`, http.StatusBadRequest},
		{"missing user", `{"message":"hello"}`, http.StatusUnprocessableEntity},
		{"missing message", `{"user":"Amina"}`, http.StatusUnprocessableEntity},
		{"blank message", `{"user":"Amina","message":"   "}`, http.StatusUnprocessableEntity},
	}
	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.post(t, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}
	require.Empty(t, s.history(t, ""))
}

func TestChatServer_History_Invalid_Limit(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.url + "/api/chat/messages?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatServer_Live_Channel(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	// Given Amina then Omar on the live channel
	amina := s.dial(t, "Amina")
	req.Eventually(func() bool { return s.service.LiveCount() == 1 }, time.Second, 5*time.Millisecond)
	omar := s.dial(t, "Omar")
	req.Eventually(func() bool { return s.service.LiveCount() == 2 }, time.Second, 5*time.Millisecond)

	// Then Amina is told Omar joined
	frame := readFrame(t, amina)
	req.Equal(event.FrameUserJoined, frame.Type)
	req.Equal("Omar", frame.User)

	// When Omar speaks, both receive it and Omar never saw his own join
	req.NoError(omar.WriteJSON(event.OutboundFrame{Message: "salut"}))
	for _, conn := range []*websocket.Conn{amina, omar} {
		frame = readFrame(t, conn)
		req.Equal(event.FrameMessage, frame.Type)
		req.Equal("Omar", frame.User)
		req.Equal("salut", frame.Message)
	}

	// When Omar leaves, Amina is told once
	req.NoError(omar.Close())
	frame = readFrame(t, amina)
	req.Equal(event.FrameUserLeft, frame.Type)
	req.Equal("Omar", frame.User)
	req.Eventually(func() bool { return s.service.LiveCount() == 1 }, time.Second, 5*time.Millisecond)

	// And the message was stored
	history := s.history(t, "")
	req.Len(history, 1)
	req.Equal("salut", history[0].Body)
}

func TestChatServer_Live_Channel_Keeps_Send_Order(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	amina := s.dial(t, "Amina")
	req.Eventually(func() bool { return s.service.LiveCount() == 1 }, time.Second, 5*time.Millisecond)
	omar := s.dial(t, "Omar")
	req.Equal(event.FrameUserJoined, readFrame(t, amina).Type)

	// When Omar sends many messages in a row
	const total = 50
	for i := 0; i < total; i++ {
		req.NoError(omar.WriteJSON(event.OutboundFrame{Message: fmt.Sprintf("message %d", i)}))
	}

	// Then Amina receives them in the order Omar sent them
	for i := 0; i < total; i++ {
		frame := readFrame(t, amina)
		req.Equal(event.FrameMessage, frame.Type)
		req.Equal(fmt.Sprintf("message %d", i), frame.Message)
	}

	// And the stored history has the same order
	history := s.history(t, "?limit=100")
	req.Len(history, total)
	for i, message := range history {
		req.Equal(fmt.Sprintf("message %d", i), message.Body)
	}
}

func TestChatServer_Live_Channel_Escaped_Name(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	conn := s.dial(t, "Ana María/2")

	req.NoError(conn.WriteJSON(event.OutboundFrame{Message: "hola"}))

	frame := readFrame(t, conn)
	req.Equal("Ana María/2", frame.User)
}

func TestChatServer_Live_Channel_Blank_Name(t *testing.T) {
	s := newTestServer(t)
	endpoint := "ws" + strings.TrimPrefix(s.url, "http") + "/api/chat/ws/%20%20"

	_, resp, err := websocket.DefaultDialer.Dial(endpoint, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
