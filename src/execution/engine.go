package execution

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	marketSlippage = 0.001

	twapNoise          = 0.001
	twapImpact         = 0.0005
	defaultTwapSlices  = 10
	defaultTwapMinutes = 30

	vwapNoise          = 0.001
	vwapImpact         = 0.001
	defaultVwapSlices  = 8
	defaultVwapMinutes = 60

	icebergNoise          = 0.0005
	icebergImpact         = 0.0001
	defaultIcebergSlices  = 5
	defaultIcebergVisible = 5 // one fifth of the parent order
)

// Engine turns parent orders into priced slices. It keeps no state between
// calls and never touches capital; the noise source is the only shared part.
type Engine struct {
	logger *logrus.Entry
	noise  NoiseSource
	now    func() time.Time
}

func NewEngine(logger *logrus.Entry, noise NoiseSource) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if noise == nil {
		noise = ZeroNoise{}
	}

	return &Engine{logger: logger, noise: noise, now: time.Now}
}

// WithClock returns a copy of the engine that timestamps slices using now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

func (e *Engine) Execute(ctx context.Context, req Request) (Fill, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("execution canceled: %w", err)
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"algorithm": req.Algorithm,
		"symbol":    req.Symbol,
		"side":      req.Side,
		"quantity":  req.Quantity,
	})

	var fill Fill
	switch req.Algorithm {
	case AlgorithmMarket:
		fill = e.executeMarket(req)
	case AlgorithmTWAP:
		fill = e.executeTWAP(req)
	case AlgorithmVWAP:
		fill = e.executeVWAP(req, log)
	case AlgorithmIceberg:
		fill = e.executeIceberg(req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, req.Algorithm)
	}

	plan := fill.Plan()
	if err := plan.finalize(); err != nil {
		log.WithError(err).Error("fill plan rejected")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"slices":    len(plan.Slices),
		"avg_price": plan.AvgExecutionPrice,
		"slippage":  plan.TotalSlippage,
	}).Debug("order executed")

	return fill, nil
}

func validate(req Request) error {
	if req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if req.ReferencePrice <= 0 || math.IsNaN(req.ReferencePrice) || math.IsInf(req.ReferencePrice, 0) {
		return ErrInvalidPrice
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return ErrInvalidSide
	}
	return nil
}

func newPlan(req Request) FillPlan {
	return FillPlan{
		Algorithm:      req.Algorithm,
		Symbol:         req.Symbol,
		Side:           req.Side,
		ReferencePrice: req.ReferencePrice,
		TotalQuantity:  req.Quantity,
	}
}

// finalize derives filled quantity, average price and slippage from the slices.
func (p *FillPlan) finalize() error {
	var filled int64
	cost := 0.0
	for _, s := range p.Slices {
		filled += s.Quantity
		cost += s.Price * float64(s.Quantity)
	}
	if filled > p.TotalQuantity {
		return fmt.Errorf("%w: %d > %d", ErrOverfill, filled, p.TotalQuantity)
	}

	p.FilledQuantity = filled
	if filled > 0 {
		p.AvgExecutionPrice = cost / float64(filled)
	}
	p.TotalSlippage = math.Abs(p.AvgExecutionPrice-p.ReferencePrice) * float64(filled)
	return nil
}

// impacted moves price against the order: up for buys, down for sells.
func impacted(price, impact float64, side Side) float64 {
	if side == SideBuy {
		return price * (1 + impact)
	}
	return price * (1 - impact)
}

func (e *Engine) noisy(price, sigma float64) float64 {
	return price * (1 + e.noise.NormFloat64()*sigma)
}

// evenSplit splits quantity into n parts, handing the remainder to the
// earliest parts.
func evenSplit(quantity int64, n int) []int64 {
	if n <= 0 {
		n = 1
	}
	base := quantity / int64(n)
	rem := quantity % int64(n)

	parts := make([]int64, n)
	for i := range parts {
		parts[i] = base
		if int64(i) < rem {
			parts[i]++
		}
	}
	return parts
}
