package internal

import (
	"fmt"
	"time"
)

// Config of the chat server.
type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8000"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	LowCapacityThreshold float64       `env:"LOW_CAPACITY_THRESHOLD,default=0.8"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CensoredDir          string        `env:"CENSORED_DIR"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	RedisAddr            string        `env:"REDIS_ADDR"`
	RedisChannel         string        `env:"REDIS_CHANNEL,default=bkalan:chat"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
