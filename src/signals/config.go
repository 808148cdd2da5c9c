package signals

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled    bool          `envconfig:"SIGNAL_INBOX_ENABLED" default:"false"`
	LoopPeriod time.Duration `envconfig:"SIGNAL_POLL_PERIOD" default:"5s"`
	BatchSize  int           `envconfig:"SIGNAL_BATCH_SIZE" default:"100"`
	// FromLatest skips signals already in the inbox at startup.
	FromLatest bool `envconfig:"SIGNAL_FROM_LATEST" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
