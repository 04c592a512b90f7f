package main

import (
	"bkalan/contract"
	"bkalan/infrastructure/fallback"
	"bkalan/infrastructure/live"
	"bkalan/session"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL      string        `env:"CHAT_SERVER_URL,default=http://localhost:8000"`
	User           string        `env:"CHAT_USER"`
	LiveDisabled   bool          `env:"CHAT_LIVE_DISABLED,default=false"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT,default=10s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	ResyncDelay    time.Duration `env:"RESYNC_DELAY,default=1s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL,default=0s"`
	LogLevel       string        `env:"LOG_LEVEL,default=WARN"`
	Colours        bool          `env:"COLOURS,default=true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run owns the session lifecycle: the session loop, the renderer and the
// stdin loop all stop with the signal context.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Transports. Without a dialer every connection uses the fallback.
	var dialer contract.LiveDialer
	if !config.LiveDisabled {
		liveDialer, err := live.NewDialer(log, config.ServerURL, config.WriteTimeout)
		if err != nil {
			return exitConfig, fmt.Errorf("invalid CHAT_SERVER_URL: %w", err)
		}
		dialer = liveDialer
	}
	api := fallback.NewClient(log, config.ServerURL, config.RequestTimeout)

	// 3. Session loop
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat := session.New(log, dialer, api, session.Config{
		ConnectTimeout: config.ConnectTimeout,
		RequestTimeout: config.RequestTimeout,
		ResyncDelay:    config.ResyncDelay,
		PollInterval:   config.PollInterval,
	})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = chat.Run(ctx)
	}()
	defer func() {
		stop()
		<-stopped
	}()

	renderer := NewRenderer(os.Stdout, config.Colours)
	go func() {
		connected := false
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-chat.Updates():
				renderer.Render(snapshot.Messages)
				if connected && !snapshot.State.IsConnected() {
					fmt.Println(renderer.Lost())
				}
				connected = snapshot.State.IsConnected()
			}
		}
	}()

	// 4. Join then read commands
	lines := readLines(ctx, os.Stdin)
	name := strings.TrimSpace(config.User)
	if name == "" {
		fmt.Print("Votre nom : ")
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			name = line
		}
	}

	state, err := chat.Connect(ctx, name)
	if err != nil {
		return exitRuntime, fmt.Errorf("connection failed: %w", err)
	}
	fmt.Println(renderer.Status(state))
	defer chat.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handleLine(ctx, os.Stdout, chat, renderer, name, line); quit {
				return exitOK, nil
			}
		}
	}
}

// handleLine runs one slash command or sends the line as a message.
// /reconnect is the way back after the live channel dropped.
func handleLine(ctx context.Context, out io.Writer, chat *session.Session, renderer *Renderer,
	name, line string) bool {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit":
		return true
	case "/status":
		_, _ = fmt.Fprintln(out, renderer.Status(chat.State()))
	case "/resync":
		if err := chat.Resync(ctx); err != nil {
			_, _ = fmt.Fprintln(out, renderer.Error(err))
		}
	case "/reconnect":
		chat.Disconnect()
		state, err := chat.Connect(ctx, name)
		if err != nil {
			_, _ = fmt.Fprintln(out, renderer.Error(err))
			return false
		}
		_, _ = fmt.Fprintln(out, renderer.Status(state))
	default:
		if err := chat.Send(ctx, line); err != nil {
			_, _ = fmt.Fprintln(out, renderer.Error(err))
		}
	}
	return false
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
