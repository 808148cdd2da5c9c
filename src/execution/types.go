package execution

import (
	"errors"
	"time"
)

type Algorithm string

const (
	AlgorithmMarket  Algorithm = "MARKET"
	AlgorithmTWAP    Algorithm = "TWAP"
	AlgorithmVWAP    Algorithm = "VWAP"
	AlgorithmIceberg Algorithm = "ICEBERG"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

var (
	ErrInvalidQuantity  = errors.New("execution: quantity must be positive")
	ErrInvalidPrice     = errors.New("execution: reference price must be positive")
	ErrInvalidSide      = errors.New("execution: side must be BUY or SELL")
	ErrUnknownAlgorithm = errors.New("execution: unknown algorithm")
	ErrOverfill         = errors.New("execution: filled quantity exceeds requested quantity")
)

// Params tunes the slicing algorithms. Zero values select the defaults.
type Params struct {
	NumSlices       int
	DurationMinutes int

	// VolumeProfile is the historical volume series, oldest first. VWAP only.
	VolumeProfile []float64

	// VisibleQuantity caps the displayed size of every iceberg slice.
	// VisiblePct is used when VisibleQuantity is zero.
	VisibleQuantity int64
	VisiblePct      float64
}

// Request is a single parent order handed to the engine.
type Request struct {
	Algorithm      Algorithm
	Symbol         string
	Quantity       int64
	Side           Side
	ReferencePrice float64
	Params         Params
}

// Slice is one child fill of a parent order.
type Slice struct {
	Index           int       `json:"index"`
	Quantity        int64     `json:"quantity"`
	Price           float64   `json:"price"`
	VisibleQuantity *int64    `json:"visible_quantity,omitempty"`
	VolumePct       *float64  `json:"volume_pct,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// FillPlan is the priced outcome of a request. It is built fresh per call.
type FillPlan struct {
	Algorithm         Algorithm `json:"algorithm"`
	Symbol            string    `json:"symbol"`
	Side              Side      `json:"side"`
	ReferencePrice    float64   `json:"reference_price"`
	TotalQuantity     int64     `json:"total_quantity"`
	FilledQuantity    int64     `json:"filled_quantity"`
	Slices            []Slice   `json:"slices"`
	AvgExecutionPrice float64   `json:"avg_execution_price"`
	TotalSlippage     float64   `json:"total_slippage"`

	// Degraded is set when the requested slicing could not be honoured and a
	// fallback was used instead.
	Degraded bool `json:"degraded,omitempty"`
}

// Plan lets every fill variant expose its common plan.
func (p *FillPlan) Plan() *FillPlan { return p }

// Fill is implemented by MarketFill, TwapFill, VwapFill and IcebergFill.
type Fill interface {
	Plan() *FillPlan
}

type MarketFill struct {
	FillPlan
}

type TwapFill struct {
	FillPlan
	DurationMinutes int
}

type VwapFill struct {
	FillPlan
	VolumePcts      []float64
	DurationMinutes int
}

type IcebergFill struct {
	FillPlan
	VisibleQuantity int64
}
