package services

import (
	"bkalan/domain"
	"bkalan/domain/event"
	"bkalan/infrastructure/storage"
	"bkalan/mocks"
	"bkalan/moderation"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	service     *ChatService
	repository  *mocks.MockIMessageRepository
	registry    *mocks.MockIRegistry
	broadcaster *mocks.MockBroadcaster
}

func newFixture(t *testing.T) fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)
	f := fixture{
		repository:  mocks.NewMockIMessageRepository(ctrl),
		registry:    mocks.NewMockIRegistry(ctrl),
		broadcaster: mocks.NewMockBroadcaster(ctrl),
	}
	f.service = NewChatService(log, f.repository, moderator, f.registry, f.broadcaster)
	f.service.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestChatService_PostMessage_Stores_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	var stored storage.DiskMessage
	f.repository.EXPECT().StoreMessage(gomock.Any()).
		DoAndReturn(func(m storage.DiskMessage) error {
			stored = m
			return nil
		}).Times(1)
	f.broadcaster.EXPECT().Publish(gomock.Any(), event.Broadcast{Frame: event.Frame{
		Type: event.FrameMessage, User: "Amina", Message: "the ****** is here", Timestamp: "2026-10-18T09:30:00Z",
	}}).Return(nil).Times(1)

	// When a message with a forbidden word is posted
	message, err := f.service.PostMessage(context.Background(), "Amina", "the badger is here", at)

	// Then the censored version is stored and broadcast
	req.NoError(err)
	req.Equal("the ****** is here", message.Body)
	req.Equal(domain.KindUser, message.Kind)
	req.True(stored.Censored)
	req.NotEqual(uuid.Nil, stored.ID)
}

func TestChatService_PostMessage_Store_Failure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given the store is failing
	f.repository.EXPECT().StoreMessage(gomock.Any()).Return(errors.New("disk full")).Times(1)
	// Then nothing is broadcast
	f.broadcaster.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.PostMessage(context.Background(), "Amina", "hello", time.Now())
	req.Error(err)
}

func TestChatService_GetMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	f.repository.EXPECT().GetMessages(50).Return([]storage.DiskMessage{
		{ID: uuid.New(), Author: "Amina", Content: "salut", At: at},
		{ID: uuid.New(), Author: "Omar", Content: "bonjour", At: at.Add(time.Second)},
	}, nil)

	messages, err := f.service.GetMessages(50)

	req.NoError(err)
	req.Equal([]domain.ChatMessage{
		domain.NewUserMessage("Amina", "salut", "2026-10-18T09:30:00Z"),
		domain.NewUserMessage("Omar", "bonjour", "2026-10-18T09:30:01Z"),
	}, messages)
}

func TestChatService_Join_Announces_To_Others(t *testing.T) {
	f := newFixture(t)
	sink := mocks.NewMockEventSink(gomock.NewController(t))

	// When a participant joins
	f.registry.EXPECT().Subscribe("conn-1", "Omar", sink).Times(1)
	f.registry.EXPECT().Count().Return(1).AnyTimes()
	// Then the others learn it, the joiner is excluded
	f.broadcaster.EXPECT().Publish(gomock.Any(), event.Broadcast{
		Frame:  event.JoinedFrame("Omar", "2026-10-18T09:00:00Z"),
		Except: "conn-1",
	}).Return(nil).Times(1)

	f.service.Join(context.Background(), "conn-1", "Omar", sink)
}

func TestChatService_Leave_Announces_Once(t *testing.T) {
	f := newFixture(t)
	f.registry.EXPECT().Count().Return(0).AnyTimes()

	gomock.InOrder(
		f.registry.EXPECT().Unsubscribe("conn-1").Return("Omar", true),
		f.registry.EXPECT().Unsubscribe("conn-1").Return("", false),
	)
	f.broadcaster.EXPECT().Publish(gomock.Any(), event.Broadcast{
		Frame: event.LeftFrame("Omar", "2026-10-18T09:00:00Z"),
	}).Return(nil).Times(1)

	// When the same connection leaves twice
	f.service.Leave(context.Background(), "conn-1")
	f.service.Leave(context.Background(), "conn-1")
}
