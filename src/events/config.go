package events

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	QueueSize      int           `envconfig:"EVENT_QUEUE_SIZE" default:"1024"`
	SinkTimeout    time.Duration `envconfig:"EVENT_SINK_TIMEOUT" default:"5s"`
	WebhookURL     string        `envconfig:"EVENT_WEBHOOK_URL"`
	WebhookToken   string        `envconfig:"EVENT_WEBHOOK_TOKEN"`
	WebhookRetries int           `envconfig:"EVENT_WEBHOOK_RETRIES" default:"3"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
