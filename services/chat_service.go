package services

import (
	"bkalan/contract"
	"bkalan/domain"
	"bkalan/domain/event"
	"bkalan/infrastructure/storage"
	"bkalan/moderation"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	PostMessage(ctx context.Context, user, content string, at time.Time) (domain.ChatMessage, error)
	GetMessages(limit int) ([]domain.ChatMessage, error)
	Join(ctx context.Context, connID, user string, sink contract.EventSink)
	Leave(ctx context.Context, connID string)
	LiveCount() int
}

// ChatService is the single room of the collaborator server: it moderates and
// stores messages, tracks live participants and broadcasts frames to them.
type ChatService struct {
	log         *slog.Logger
	repository  storage.IMessageRepository
	moderator   *moderation.Moderator
	registry    contract.IRegistry
	broadcaster contract.Broadcaster
	now         func() time.Time
}

func NewChatService(log *slog.Logger, repository storage.IMessageRepository, moderator *moderation.Moderator,
	registry contract.IRegistry, broadcaster contract.Broadcaster) *ChatService {
	return &ChatService{
		log:         log,
		repository:  repository,
		moderator:   moderator,
		registry:    registry,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// PostMessage stores a message and broadcasts it to every live participant,
// its author included: the live sender learns the server timestamp this way.
func (s *ChatService) PostMessage(ctx context.Context, user, content string, at time.Time) (domain.ChatMessage, error) {
	sanitized := s.moderator.Sanitize(content)
	diskMessage := storage.DiskMessage{
		ID:       uuid.New(),
		Author:   user,
		Content:  sanitized.Content,
		At:       at.UTC(),
		Lang:     sanitized.Lang,
		Censored: sanitized.Censored(),
	}
	if err := s.repository.StoreMessage(diskMessage); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("store message: %w", err)
	}
	message := toChatMessage(diskMessage)
	s.publish(ctx, event.Broadcast{Frame: event.MessageFrame(message)})
	return message, nil
}

func (s *ChatService) GetMessages(limit int) ([]domain.ChatMessage, error) {
	diskMessages, err := s.repository.GetMessages(limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(diskMessages, func(item storage.DiskMessage, _ int) domain.ChatMessage {
		return toChatMessage(item)
	}), nil
}

// Join registers a live connection and announces it to the others. The
// joiner itself is not notified, its client echoes its own arrival.
func (s *ChatService) Join(ctx context.Context, connID, user string, sink contract.EventSink) {
	s.registry.Subscribe(connID, user, sink)
	s.log.Info("Participant joined", "user", user, "conn", connID, "live", s.registry.Count())
	s.publish(ctx, event.Broadcast{
		Frame:  event.JoinedFrame(user, domain.Timestamp(s.now())),
		Except: connID,
	})
}

// Leave unregisters a live connection and announces the departure once.
func (s *ChatService) Leave(ctx context.Context, connID string) {
	user, ok := s.registry.Unsubscribe(connID)
	if !ok {
		return
	}
	s.log.Info("Participant left", "user", user, "conn", connID, "live", s.registry.Count())
	s.publish(ctx, event.Broadcast{Frame: event.LeftFrame(user, domain.Timestamp(s.now()))})
}

func (s *ChatService) LiveCount() int {
	return s.registry.Count()
}

func (s *ChatService) publish(ctx context.Context, broadcast event.Broadcast) {
	if err := s.broadcaster.Publish(ctx, broadcast); err != nil {
		s.log.Warn("Broadcast failed", "type", broadcast.Frame.Type, "error", err)
	}
}

func toChatMessage(message storage.DiskMessage) domain.ChatMessage {
	return domain.NewUserMessage(message.Author, message.Content, domain.Timestamp(message.At))
}
