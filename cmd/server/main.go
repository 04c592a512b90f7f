package main

import (
	"bkalan/contract"
	"bkalan/domain/event"
	"bkalan/infrastructure/broker"
	server "bkalan/infrastructure/http"
	"bkalan/infrastructure/storage"
	"bkalan/internal"
	"bkalan/moderation"
	"bkalan/observability"
	"bkalan/runtime"
	"bkalan/runtime/workers"
	"bkalan/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups all run before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	moderator, err := newModerator(log, config, charReplacement)
	if err != nil {
		return exitConfig, err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Broadcast & supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	broadcasts := make(chan event.Broadcast, config.ConnectionBufferSize)
	supervisor.Add(workers.NewEventFanoutWorker(log, registry, broadcasts, config.SinkTimeout))
	if config.MetricInterval > 0 {
		supervisor.Add(workers.NewChannelCapacityWorker(log,
			[]workers.NamedChannel{{Name: "broadcasts", Channel: broadcasts}},
			config.MetricInterval, config.LowCapacityThreshold))
	}

	var broadcaster contract.Broadcaster = workers.NewLocalBroadcaster(broadcasts)
	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() { _ = rdb.Close() }()
		broadcaster = broker.NewRedisBroadcaster(rdb, config.RedisChannel)
		supervisor.Add(broker.NewRedisRelayWorker(log, rdb, config.RedisChannel, broadcasts))
		log.Info("Broadcasting through Redis", "addr", config.RedisAddr, "channel", config.RedisChannel)
	}
	go supervisor.Run(ctx)

	// 4. HTTP server
	chatService := services.NewChatService(log,
		storage.NewMessageRepository(db, log, config.LimitMessages),
		moderator, registry, broadcaster)
	chatServer := server.NewChatServer(log, chatService, observability.NewHealthReporter(),
		config.ConnectionBufferSize, config.SinkTimeout)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           chatServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errChan:
		supervisor.Stop()
		return exitRuntime, err
	}

	// 6. Final Cleanup (Graceful Shutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Forced shutdown", "error", err)
	}
	supervisor.Stop()
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

// newModerator merges the inline word list with the dictionary directory.
func newModerator(log *slog.Logger, config internal.Config, charReplacement rune) (*moderation.Moderator, error) {
	words := moderation.SplitWords(config.CensoredWords)
	if config.CensoredDir != "" {
		dictionary, err := moderation.NewDictionaryLoader(os.DirFS(config.CensoredDir)).LoadAll(".")
		if err != nil {
			return nil, fmt.Errorf("loading censored words from %s: %w", config.CensoredDir, err)
		}
		log.Info("Censored dictionaries loaded", "languages", dictionary.Languages, "words", len(dictionary.Words))
		words = append(words, dictionary.Words...)
	}
	return moderation.NewModerator(words, charReplacement, log)
}
