package live

import (
	"bkalan/domain/event"
	"bkalan/errors"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestWebSocketBase(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"http://localhost:8000", "ws://localhost:8000"},
		{"https://chat.bkalan.com/", "wss://chat.bkalan.com"},
		{"ws://localhost:8000", "ws://localhost:8000"},
		{"wss://chat.bkalan.com", "wss://chat.bkalan.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, err := WebSocketBase(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.out, base)
		})
	}

	_, err := WebSocketBase("ftp://localhost")
	require.Error(t, err)
}

func TestDialer_Endpoint_Escapes_Name(t *testing.T) {
	req := require.New(t)
	dialer, err := NewDialer(logs.GetLoggerFromLevel(slog.LevelDebug), "http://localhost:8000", time.Second)
	req.NoError(err)

	req.Equal("ws://localhost:8000/api/chat/ws/Ana%20Mar%C3%ADa", dialer.Endpoint("Ana María"))
	req.Equal("ws://localhost:8000/api/chat/ws/a%2Fb", dialer.Endpoint("a/b"))
}

// echoServer answers every outbound frame with a message frame from user
// and records the path name it was dialed with.
func echoServer(t *testing.T, names chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	router := mux.NewRouter().UseEncodedPath()
	router.HandleFunc("/api/chat/ws/{user}", func(w http.ResponseWriter, r *http.Request) {
		names <- mux.Vars(r)["user"]
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(event.JoinedFrame("Omar", "2026-10-18T09:00:00Z"))
		for {
			var frame event.OutboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			_ = conn.WriteJSON(event.Frame{Type: event.FrameMessage, User: "echo", Message: frame.Message})
		}
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestChannel_Roundtrip(t *testing.T) {
	req := require.New(t)
	names := make(chan string, 1)
	server := echoServer(t, names)
	dialer, err := NewDialer(logs.GetLoggerFromLevel(slog.LevelDebug), server.URL, time.Second)
	req.NoError(err)

	// When dialing with a name that needs escaping
	channel, err := dialer.Dial(context.Background(), "Ana María")
	req.NoError(err)
	defer channel.Close()
	req.Equal("Ana%20Mar%C3%ADa", <-names)

	// Then the undecodable frame is skipped
	frame, err := channel.Receive()
	req.NoError(err)
	req.Equal(event.FrameUserJoined, frame.Type)
	req.Equal("Omar", frame.User)

	// And sent bodies come back
	req.NoError(channel.Send("hello"))
	frame, err = channel.Receive()
	req.NoError(err)
	req.Equal("hello", frame.Message)
}

func TestChannel_Send_Without_Write_Timeout(t *testing.T) {
	req := require.New(t)
	server := echoServer(t, make(chan string, 1))

	// Given a dialer configured without write timeout
	dialer, err := NewDialer(logs.GetLoggerFromLevel(slog.LevelDebug), server.URL, 0)
	req.NoError(err)
	req.Equal(defaultWriteTimeout, dialer.writeTimeout)

	channel, err := dialer.Dial(context.Background(), "Omar")
	req.NoError(err)
	defer channel.Close()
	_, err = channel.Receive()
	req.NoError(err)

	// When sending
	req.NoError(channel.Send("salut"))

	// Then the write is not expired at once
	frame, err := channel.Receive()
	req.NoError(err)
	req.Equal("salut", frame.Message)
}

func TestChannel_Close_Ends_Receive(t *testing.T) {
	req := require.New(t)
	server := echoServer(t, make(chan string, 1))
	dialer, err := NewDialer(logs.GetLoggerFromLevel(slog.LevelDebug), server.URL, time.Second)
	req.NoError(err)
	channel, err := dialer.Dial(context.Background(), "Amina")
	req.NoError(err)
	_, err = channel.Receive()
	req.NoError(err)

	req.NoError(channel.Close())
	req.NoError(channel.Close())

	_, err = channel.Receive()
	req.Error(err)
}

func TestDialer_Dial_Unavailable(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	dialer, err := NewDialer(logs.GetLoggerFromLevel(slog.LevelDebug), server.URL, time.Second)
	req.NoError(err)

	channel, err := dialer.Dial(context.Background(), "Amina")

	req.ErrorIs(err, errors.ErrTransportUnavailable)
	req.True(strings.Contains(err.Error(), "/api/chat/ws/Amina"))
	req.Nil(channel)
}
