package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TotalCapital         float64            `envconfig:"TOTAL_CAPITAL" default:"500000"`
	MaxDailyLoss         float64            `envconfig:"MAX_DAILY_LOSS" default:"10000"`
	MaxDrawdownPct       float64            `envconfig:"MAX_DRAWDOWN_PCT" default:"0"`
	EnforceNoTradeWindow bool               `envconfig:"ENFORCE_NO_TRADE_WINDOW" default:"false"`
	TradingTimezone      string             `envconfig:"TRADING_TIMEZONE" default:"Asia/Kolkata"`
	SessionSizing        bool               `envconfig:"SESSION_SIZING" default:"false"`
	Strategies           StrategyList       `envconfig:"STRATEGIES"`
	AverageVolumes       map[string]float64 `envconfig:"AVERAGE_VOLUMES"`
	MarketBandPct        float64            `envconfig:"MARKET_BAND_PCT" default:"0.5"`
	TwapBandPct          float64            `envconfig:"TWAP_BAND_PCT" default:"2"`
	VwapBandPct          float64            `envconfig:"VWAP_BAND_PCT" default:"5"`
	Volatility           float64            `envconfig:"VOLATILITY_PCT" default:"1.5"`
	Urgency              string             `envconfig:"URGENCY" default:"normal"`
	NoiseSeed            uint64             `envconfig:"NOISE_SEED" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// StrategyList decodes "name:pct[:maxPositions[:riskPct]];..." from the
// environment.
type StrategyList []StrategyConfig

func (l *StrategyList) Decode(value string) error {
	var out StrategyList
	for _, item := range strings.Split(value, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 4 {
			return fmt.Errorf("strategy %q: want name:pct[:maxPositions[:riskPct]]", item)
		}

		cfg := StrategyConfig{Name: strings.TrimSpace(parts[0])}
		pct, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("strategy %q allocation: %w", cfg.Name, err)
		}
		cfg.AllocationPct = pct

		if len(parts) > 2 {
			if cfg.MaxPositions, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
				return fmt.Errorf("strategy %q max positions: %w", cfg.Name, err)
			}
		}
		if len(parts) > 3 {
			if cfg.RiskPerTradePct, err = strconv.ParseFloat(strings.TrimSpace(parts[3]), 64); err != nil {
				return fmt.Errorf("strategy %q risk per trade: %w", cfg.Name, err)
			}
		}
		out = append(out, cfg)
	}

	*l = out
	return nil
}
