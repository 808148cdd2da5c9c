package marketdata

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/sirupsen/logrus"
)

var klinePeriods = map[string]struct {
	goex     goex.KlinePeriod
	duration time.Duration
}{
	"1m":  {goex.KLINE_PERIOD_1MIN, time.Minute},
	"5m":  {goex.KLINE_PERIOD_5MIN, 5 * time.Minute},
	"15m": {goex.KLINE_PERIOD_15MIN, 15 * time.Minute},
	"1h":  {goex.KLINE_PERIOD_1H, time.Hour},
	"4h":  {goex.KLINE_PERIOD_4H, 4 * time.Hour},
	"1d":  {goex.KLINE_PERIOD_1DAY, 24 * time.Hour},
}

type cachedSeries struct {
	volumes   []float64
	fetchedAt time.Time
}

// BinanceVolumeSource derives the VWAP volume profile and the average daily
// volume from Binance klines. Series are cached per symbol for the
// configured TTL.
type BinanceVolumeSource struct {
	exchange goex.API
	period   goex.KlinePeriod
	span     time.Duration
	limit    int
	quote    string
	ttl      time.Duration
	now      func() time.Time
	log      *logrus.Entry

	mu    sync.Mutex
	cache map[string]cachedSeries
}

func NewBinanceVolumeSource(config Config, logger *logrus.Entry) (*BinanceVolumeSource, error) {
	p, ok := klinePeriods[strings.ToLower(config.KlinePeriod)]
	if !ok {
		return nil, fmt.Errorf("unsupported kline period %q", config.KlinePeriod)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	limit := config.KlineLimit
	if limit <= 0 {
		limit = 24
	}
	quote := config.DefaultQuote
	if quote == "" {
		quote = "USDT"
	}

	apiConfig := &goex.APIConfig{
		HttpClient: &http.Client{Timeout: 10 * time.Second},
		Endpoint:   config.BinanceEndpoint,
	}
	return &BinanceVolumeSource{
		exchange: binance.NewWithConfig(apiConfig),
		period:   p.goex,
		span:     p.duration,
		limit:    limit,
		quote:    strings.ToUpper(quote),
		ttl:      config.VolumeCacheTTL,
		now:      time.Now,
		log:      logger.WithField("component", "BinanceVolumeSource"),
		cache:    make(map[string]cachedSeries),
	}, nil
}

// Pair maps a ledger symbol to a Binance pair: "BTC_USDT" and "ETH-BTC" are
// split as given, a bare "BTC" takes the default quote.
func (b *BinanceVolumeSource) Pair(symbol string) goex.CurrencyPair {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"_", "-", "/"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})
		}
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: s}, goex.Currency{Symbol: b.quote})
}

// Volumes returns the kline volumes for symbol, oldest first.
func (b *BinanceVolumeSource) Volumes(symbol string) ([]float64, error) {
	key := strings.ToUpper(symbol)

	b.mu.Lock()
	c, ok := b.cache[key]
	b.mu.Unlock()
	if ok && b.now().Sub(c.fetchedAt) < b.ttl {
		return append([]float64(nil), c.volumes...), nil
	}

	klines, err := b.exchange.GetKlineRecords(b.Pair(symbol), b.period, b.limit)
	if err != nil {
		b.log.WithError(err).WithField("symbol", symbol).Warn("kline fetch failed")
		if ok {
			return append([]float64(nil), c.volumes...), nil
		}
		return nil, fmt.Errorf("fetch klines for %s: %w", symbol, err)
	}

	vols := make([]float64, 0, len(klines))
	for _, k := range klines {
		vols = append(vols, k.Vol)
	}

	b.mu.Lock()
	b.cache[key] = cachedSeries{volumes: vols, fetchedAt: b.now()}
	b.mu.Unlock()

	return append([]float64(nil), vols...), nil
}

// AverageVolume scales the fetched series to one day of volume.
func (b *BinanceVolumeSource) AverageVolume(symbol string) (float64, bool) {
	vols, err := b.Volumes(symbol)
	if err != nil || len(vols) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vols {
		sum += v
	}
	days := float64(len(vols)) * b.span.Hours() / 24
	if sum <= 0 || days <= 0 {
		return 0, false
	}
	return sum / days, true
}
