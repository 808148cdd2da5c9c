package execution

import (
	"math"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// Bands are the order-size thresholds, in percent of average volume, that
// separate MARKET, TWAP, VWAP and ICEBERG.
type Bands struct {
	MarketPct float64
	TwapPct   float64
	VwapPct   float64
}

func DefaultBands() Bands {
	return Bands{MarketPct: 0.5, TwapPct: 2, VwapPct: 5}
}

const highUrgencyMarketPct = 1.0

type Recommendation struct {
	Algorithm          Algorithm `json:"algorithm"`
	Reason             string    `json:"reason"`
	EstimatedImpactPct float64   `json:"estimated_impact_pct"`
	SizeVsVolumePct    float64   `json:"size_vs_volume_pct"`
	Params             Params    `json:"params"`
}

// Optimizer picks the slicing algorithm that balances impact and urgency.
type Optimizer struct {
	bands Bands
}

func NewOptimizer(bands Bands) *Optimizer {
	if bands.MarketPct <= 0 || bands.TwapPct <= bands.MarketPct || bands.VwapPct <= bands.TwapPct {
		bands = DefaultBands()
	}
	return &Optimizer{bands: bands}
}

func (o *Optimizer) Bands() Bands { return o.bands }

// EstimateMarketImpact is a square-root impact model: volatility (percent)
// scaled by the square root of the order's share of volume.
func EstimateMarketImpact(orderSize int64, avgDailyVolume, volatility float64) float64 {
	if avgDailyVolume <= 0 || orderSize <= 0 {
		return 0
	}
	sizePct := float64(orderSize) / avgDailyVolume * 100
	return volatility * math.Sqrt(sizePct/100) * 0.1
}

func (o *Optimizer) Recommend(orderSize int64, avgDailyVolume, volatility float64, urgency Urgency) Recommendation {
	if avgDailyVolume <= 0 {
		return Recommendation{
			Algorithm: AlgorithmMarket,
			Reason:    "No volume reference available - use market order",
		}
	}

	sizePct := float64(orderSize) / avgDailyVolume * 100
	rec := Recommendation{
		EstimatedImpactPct: round(EstimateMarketImpact(orderSize, avgDailyVolume, volatility), 4),
		SizeVsVolumePct:    round(sizePct, 2),
	}

	switch {
	case urgency == UrgencyHigh && sizePct < highUrgencyMarketPct:
		rec.Algorithm, rec.Reason = AlgorithmMarket, "Small order with high urgency - use market order"
	case urgency == UrgencyHigh:
		rec.Algorithm, rec.Reason = AlgorithmIceberg, "Large urgent order - use iceberg to hide size"
	case sizePct < o.bands.MarketPct:
		rec.Algorithm, rec.Reason = AlgorithmMarket, "Very small order relative to volume - low impact expected"
	case sizePct < o.bands.TwapPct:
		rec.Algorithm, rec.Reason = AlgorithmTWAP, "Medium order - spread over time with TWAP"
	case sizePct < o.bands.VwapPct:
		rec.Algorithm, rec.Reason = AlgorithmVWAP, "Large order - follow volume pattern with VWAP"
	default:
		rec.Algorithm, rec.Reason = AlgorithmIceberg, "Very large order - hide size with iceberg"
	}

	switch rec.Algorithm {
	case AlgorithmTWAP:
		rec.Params = Params{
			NumSlices:       clampInt(int(sizePct*2), 5, 20),
			DurationMinutes: clampInt(int(sizePct*10), 10, 60),
		}
	case AlgorithmVWAP:
		rec.Params = Params{NumSlices: clampInt(int(sizePct*1.5), 5, 15)}
	case AlgorithmIceberg:
		rec.Params = Params{
			VisiblePct: math.Max(10, math.Min(30, 100/sizePct)),
			NumSlices:  clampInt(int(sizePct), 3, 10),
		}
	}

	return rec
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
