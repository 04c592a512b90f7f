package server

import (
	"bkalan/domain"
	"bkalan/domain/event"
	"bkalan/observability"
	"bkalan/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	defaultMessageLimit = 50
	writeWait           = 10 * time.Second
)

type ChatServer struct {
	log                  *slog.Logger
	chatService          services.IChatService
	health               *observability.HealthReporter
	validate             *validator.Validate
	upgrader             websocket.Upgrader
	connectionBufferSize int
	sinkTimeout          time.Duration
}

// SendRequest is the body of the request/response send path.
type SendRequest struct {
	User      string `json:"user" validate:"required,max=100"`
	Message   string `json:"message" validate:"required,max=4000"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func NewChatServer(log *slog.Logger, chatService services.IChatService, health *observability.HealthReporter,
	connectionBufferSize int, sinkTimeout time.Duration) *ChatServer {
	return &ChatServer{
		log:         log,
		chatService: chatService,
		health:      health,
		validate:    validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		connectionBufferSize: connectionBufferSize,
		sinkTimeout:          sinkTimeout,
	}
}

// Handler routes the chat API. Paths are matched encoded so a display name
// may contain an escaped slash.
func (s *ChatServer) Handler() http.Handler {
	router := mux.NewRouter().UseEncodedPath()
	router.Use(allowAnyOrigin)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages", s.GetMessages).Methods(http.MethodGet)
	api.HandleFunc("/chat/send", s.SendMessage).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/chat/ws/{user}", s.Connect).Methods(http.MethodGet)
	return router
}

func (s *ChatServer) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Report(s.chatService.LiveCount()))
}

// GetMessages returns the last messages oldest first, 50 unless ?limit= says
// otherwise.
func (s *ChatServer) GetMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = parsed
	}
	messages, err := s.chatService.GetMessages(limit)
	if err != nil {
		s.log.Error("Fetching messages failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "error fetching messages"})
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage stores a message posted without a live channel. The client
// timestamp is kept when it parses, the server clock is used otherwise.
func (s *ChatServer) SendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var request SendRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}
	if err := s.validate.Struct(request); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}
	if err := domain.ValidateBody(request.Message); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	at, err := time.Parse(time.RFC3339Nano, request.Timestamp)
	if err != nil {
		at = time.Now()
	}
	if _, err := s.chatService.PostMessage(r.Context(), request.User, request.Message, at); err != nil {
		s.log.Error("Posting message failed", "user", request.User, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "message not stored"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Connect upgrades to the live channel of one participant.
// It blocks until the client disconnects or a network error occurs, the
// deferred Leave announces the departure exactly once.
func (s *ChatServer) Connect(w http.ResponseWriter, r *http.Request) {
	user, err := url.PathUnescape(mux.Vars(r)["user"])
	if err == nil {
		_, err = domain.NewParticipant(user)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid user name"})
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		s.log.Warn("Websocket upgrade failed", "user", user, "error", err)
		return
	}

	connID := uuid.NewString()
	sink := NewSink(s.connectionBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), s.sinkTimeout)
		defer leaveCancel()
		s.chatService.Leave(leaveCtx, connID)
		_ = conn.Close()
	}()

	s.chatService.Join(ctx, connID, user, sink)
	go s.writePump(ctx, conn, sink, user)

	for {
		var frame event.OutboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Client connection lost", "user", user, "error", err)
			}
			return
		}
		if domain.ValidateBody(frame.Message) != nil {
			continue
		}
		if _, err := s.chatService.PostMessage(ctx, user, frame.Message, time.Now()); err != nil {
			s.log.Error("Posting live message failed", "user", user, "error", err)
		}
	}
}

// writePump is the only writer of conn.
func (s *ChatServer) writePump(ctx context.Context, conn *websocket.Conn, sink *Sink, user string) {
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case frame := <-sink.frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Warn("Failed to push frame", "user", user, "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
