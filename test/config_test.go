package test

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
)

// Config holds optional overrides, e.g. BKALAN_IT_TIMEOUT=10s on a slow CI.
type Config struct {
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"5s"`
	ResyncDelay time.Duration `envconfig:"RESYNC_DELAY" default:"50ms"`
	SinkTimeout time.Duration `envconfig:"SINK_TIMEOUT" default:"1s"`
}

func loadConfig(t *testing.T) Config {
	var config Config
	require.NoError(t, envconfig.Process("bkalan_it", &config))
	return config
}
