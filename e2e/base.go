package e2e

import (
	"bkalan/contract"
	"bkalan/infrastructure/fallback"
	"bkalan/infrastructure/live"
	"bkalan/session"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set")
	}
}

// WithSession runs fn with a session connected as name. A session without
// live support only uses the request/response endpoints.
func (s *BaseChatSuite) WithSession(name string, liveSupport bool, fn func(ctx context.Context, chat *session.Session)) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	var dialer contract.LiveDialer
	if liveSupport {
		liveDialer, err := live.NewDialer(log, s.Config.ServerURL, s.Config.Timeout)
		s.Require().NoError(err)
		dialer = liveDialer
	}
	chat := session.New(log, dialer, fallback.NewClient(log, s.Config.ServerURL, s.Config.Timeout), session.Config{
		ConnectTimeout: s.Config.Timeout,
		RequestTimeout: s.Config.Timeout,
		ResyncDelay:    200 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 4*s.Config.Timeout)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = chat.Run(ctx)
	}()
	defer func() {
		chat.Disconnect()
		cancel()
		<-stopped
	}()

	_, err := chat.Connect(ctx, name)
	s.Require().NoError(err, "Failed to join the chat at "+s.Config.ServerURL)
	fn(ctx, chat)
}
