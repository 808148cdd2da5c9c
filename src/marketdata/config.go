package marketdata

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	SourceStatic  = "static"
	SourceBinance = "binance"
)

type Config struct {
	VolumeSource string `envconfig:"VOLUME_SOURCE" default:"static"`

	BinanceEndpoint string        `envconfig:"BINANCE_ENDPOINT" default:"https://api.binance.com"`
	KlinePeriod     string        `envconfig:"KLINE_PERIOD" default:"1h"`
	KlineLimit      int           `envconfig:"KLINE_LIMIT" default:"24"`
	DefaultQuote    string        `envconfig:"DEFAULT_QUOTE" default:"USDT"`
	VolumeCacheTTL  time.Duration `envconfig:"VOLUME_CACHE_TTL" default:"5m"`

	TickFeedURL   string        `envconfig:"TICK_FEED_URL"`
	ReconnectWait time.Duration `envconfig:"TICK_FEED_RECONNECT_WAIT" default:"2s"`
	ReadTimeout   time.Duration `envconfig:"TICK_FEED_READ_TIMEOUT" default:"60s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
