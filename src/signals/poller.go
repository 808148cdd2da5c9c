// Package signals feeds strategy recommendations from the shared signal
// inbox table into the ledger.
package signals

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/externalmodel"
	"portfolioexecutor/src/ledger"
)

// Source is the read side of the signal inbox.
type Source interface {
	FindAfterID(ctx context.Context, lastID uint, limit int) ([]externalmodel.StrategySignal, error)
	LatestID(ctx context.Context) (uint, error)
}

// Opener is satisfied by *ledger.Ledger.
type Opener interface {
	Open(ctx context.Context, sig ledger.Signal) (ledger.Position, error)
}

type Poller struct {
	source Source
	opener Opener
	config Config
	log    *logrus.Entry
	lastID uint
}

func NewPoller(source Source, opener Opener, config Config, logger *logrus.Entry) *Poller {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.LoopPeriod <= 0 {
		config.LoopPeriod = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Poller{
		source: source,
		opener: opener,
		config: config,
		log:    logger.WithField("component", "signals"),
	}
}

// LastID is the id of the newest signal handed to the ledger.
func (p *Poller) LastID() uint { return p.lastID }

// Run polls the inbox on every tick until ctx is done. Inbox read errors are
// logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	if p.config.FromLatest {
		id, err := p.source.LatestID(ctx)
		if err != nil {
			p.log.WithError(err).Error("Failed to read latest signal id")
			return err
		}
		p.lastID = id
		p.log.WithField("last_id", id).Info("skipping signals already in the inbox")
	}

	ticker := time.NewTicker(p.config.LoopPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("signal loop stopped")
			return nil

		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.log.WithError(err).Warn("signal poll failed")
			}
		}
	}
}

// Poll drains the inbox batch by batch and returns how many signals opened a
// position.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	opened := 0
	for {
		rows, err := p.source.FindAfterID(ctx, p.lastID, p.config.BatchSize)
		if err != nil {
			return opened, err
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return opened, err
			}
			p.lastID = row.ID

			pos, err := p.opener.Open(ctx, ToSignal(row))
			entry := p.log.WithFields(logrus.Fields{
				"signal_id": row.ID,
				"strategy":  row.Strategy,
				"symbol":    row.Symbol,
			})
			switch {
			case err == nil:
				opened++
				entry.WithField("position_id", pos.ID).Info("signal opened position")
			case errors.Is(err, ledger.ErrInternalConsistency), errors.Is(err, ledger.ErrLedgerFaulted):
				entry.WithError(err).Error("ledger refused signal")
				return opened, err
			default:
				entry.WithField("code", ledger.Code(err)).Info("signal rejected")
			}
		}

		if len(rows) < p.config.BatchSize {
			return opened, nil
		}
	}
}

// ToSignal converts an inbox row. Unknown urgencies fall back to the
// ledger's configured default.
func ToSignal(row externalmodel.StrategySignal) ledger.Signal {
	sig := ledger.Signal{
		Strategy:       strings.TrimSpace(row.Strategy),
		Symbol:         strings.ToUpper(strings.TrimSpace(row.Symbol)),
		Side:           ledger.Side(strings.ToUpper(strings.TrimSpace(row.Side))),
		ReferencePrice: row.ReferencePrice,
		StopLoss:       row.StopLoss,
		Target:         row.Target,
	}
	switch u := execution.Urgency(strings.ToLower(strings.TrimSpace(row.Urgency))); u {
	case execution.UrgencyLow, execution.UrgencyNormal, execution.UrgencyHigh:
		sig.Urgency = u
	}
	return sig
}
