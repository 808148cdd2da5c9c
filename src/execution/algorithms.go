package execution

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

func (e *Engine) executeMarket(req Request) *MarketFill {
	plan := newPlan(req)
	plan.Slices = []Slice{{
		Index:     1,
		Quantity:  req.Quantity,
		Price:     impacted(req.ReferencePrice, marketSlippage, req.Side),
		Timestamp: e.now(),
	}}
	return &MarketFill{FillPlan: plan}
}

func (e *Engine) executeTWAP(req Request) *TwapFill {
	n := req.Params.NumSlices
	if n <= 0 {
		n = defaultTwapSlices
	}
	minutes := req.Params.DurationMinutes
	if minutes <= 0 {
		minutes = defaultTwapMinutes
	}

	start := e.now()
	step := time.Duration(minutes) * time.Minute / time.Duration(n)

	plan := newPlan(req)
	for i, qty := range evenSplit(req.Quantity, n) {
		if qty == 0 {
			continue
		}
		impact := twapImpact * (1 - float64(i)/float64(n))
		price := impacted(e.noisy(req.ReferencePrice, twapNoise), impact, req.Side)

		plan.Slices = append(plan.Slices, Slice{
			Index:     i + 1,
			Quantity:  qty,
			Price:     price,
			Timestamp: start.Add(time.Duration(i) * step),
		})
	}
	return &TwapFill{FillPlan: plan, DurationMinutes: minutes}
}

func (e *Engine) executeVWAP(req Request, log *logrus.Entry) *VwapFill {
	n := req.Params.NumSlices
	if n <= 0 {
		n = defaultVwapSlices
	}

	plan := newPlan(req)
	pcts, ok := volumeWeights(req.Params.VolumeProfile, n)
	if !ok {
		log.WithField("profile_len", len(req.Params.VolumeProfile)).
			Warn("vwap volume profile unusable, falling back to equal-weight slicing")
		plan.Degraded = true
		pcts = make([]float64, n)
		for i := range pcts {
			pcts[i] = 1 / float64(n)
		}
	}

	minutes := req.Params.DurationMinutes
	if minutes <= 0 {
		minutes = defaultVwapMinutes
	}

	// one bucket of the window per volume point
	start := e.now()
	step := time.Duration(minutes) * time.Minute / time.Duration(len(pcts))

	remaining := req.Quantity
	for i, pct := range pcts {
		qty := int64(math.Round(float64(req.Quantity) * pct))
		if qty > remaining {
			qty = remaining
		}
		if qty <= 0 {
			continue
		}
		remaining -= qty

		impact := float64(qty) / float64(req.Quantity) * vwapImpact
		price := impacted(e.noisy(req.ReferencePrice, vwapNoise), impact, req.Side)
		volPct := pct * 100

		plan.Slices = append(plan.Slices, Slice{
			Index:     i + 1,
			Quantity:  qty,
			Price:     price,
			VolumePct: &volPct,
			Timestamp: start.Add(time.Duration(i) * step),
		})
	}

	// rounding leftovers trade at the untouched reference price
	if remaining > 0 {
		zero := 0.0
		plan.Slices = append(plan.Slices, Slice{
			Index:     len(pcts) + 1,
			Quantity:  remaining,
			Price:     req.ReferencePrice,
			VolumePct: &zero,
			Timestamp: start.Add(time.Duration(len(pcts)) * step),
		})
	}

	return &VwapFill{FillPlan: plan, VolumePcts: pcts, DurationMinutes: minutes}
}

// volumeWeights takes the newest n points of the profile and turns them into
// fractions summing to 1.
func volumeWeights(profile []float64, n int) ([]float64, bool) {
	if len(profile) == 0 {
		return nil, false
	}
	if len(profile) > n {
		profile = profile[len(profile)-n:]
	}

	total := 0.0
	for _, v := range profile {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		total += v
	}
	if total <= 0 {
		return nil, false
	}

	out := make([]float64, len(profile))
	for i, v := range profile {
		out[i] = v / total
	}
	return out, true
}

func (e *Engine) executeIceberg(req Request) *IcebergFill {
	n := req.Params.NumSlices
	if n <= 0 {
		n = defaultIcebergSlices
	}

	visible := req.Params.VisibleQuantity
	if visible <= 0 && req.Params.VisiblePct > 0 {
		visible = int64(math.Floor(float64(req.Quantity) * req.Params.VisiblePct / 100))
	}
	if visible <= 0 {
		visible = req.Quantity / defaultIcebergVisible
	}
	if visible < 1 {
		visible = 1
	}

	impact := icebergImpact * float64(visible) / float64(req.Quantity)
	now := e.now()

	plan := newPlan(req)
	for i, qty := range evenSplit(req.Quantity, n) {
		if qty == 0 {
			continue
		}
		shown := min(qty, visible)
		price := impacted(e.noisy(req.ReferencePrice, icebergNoise), impact, req.Side)

		plan.Slices = append(plan.Slices, Slice{
			Index:           i + 1,
			Quantity:        qty,
			Price:           price,
			VisibleQuantity: &shown,
			Timestamp:       now,
		})
	}
	return &IcebergFill{FillPlan: plan, VisibleQuantity: visible}
}
