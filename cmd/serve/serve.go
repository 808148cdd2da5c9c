// Package serve wires the ledger to its inputs and outputs and runs them
// until the process is signalled.
package serve

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"portfolioexecutor/src/auth"
	"portfolioexecutor/src/database"
	"portfolioexecutor/src/events"
	"portfolioexecutor/src/ledger"
	"portfolioexecutor/src/marketdata"
	"portfolioexecutor/src/repository"
	"portfolioexecutor/src/server"
	"portfolioexecutor/src/signals"
	"portfolioexecutor/src/utils"
)

type Service struct {
	Log *logrus.Entry
}

// NewVolumeSource picks the configured volume source. The static source is
// fed from the ledger's AVERAGE_VOLUMES.
func NewVolumeSource(config marketdata.Config, averages map[string]float64, log *logrus.Entry) (ledger.VolumeSource, error) {
	switch config.VolumeSource {
	case marketdata.SourceBinance:
		return marketdata.NewBinanceVolumeSource(config, log)
	case marketdata.SourceStatic, "":
		return marketdata.NewStaticVolumeSource(averages), nil
	}
	return nil, fmt.Errorf("unsupported volume source %q", config.VolumeSource)
}

// NewSinks builds the event sinks: the log always, the journal when a
// journal is given and the webhook when a URL is configured.
func NewSinks(config events.Config, journal events.Journal, log *logrus.Entry) []events.Sink {
	sinks := []events.Sink{events.NewLogSink(log)}
	if journal != nil {
		sinks = append(sinks, events.NewJournalSink(journal))
	}
	if config.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookSink(config))
	}
	return sinks
}

func (s *Service) Start(ctx context.Context) (err error) {
	if s.Log == nil {
		s.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	log := s.Log

	ledgerCfg := ledger.GetConfig()
	dbCfg := database.GetConfig()
	eventsCfg := events.GetConfig()
	marketCfg := marketdata.GetConfig()
	signalsCfg := signals.GetConfig()

	var closers utils.Closers
	defer func() {
		err = errors.Join(err, closers.Close())
	}()

	var journal *repository.JournalRepository
	if dbCfg.EnableDB {
		if err := database.InitMainDB(dbCfg); err != nil {
			return fmt.Errorf("init main database: %w", err)
		}
		closers.Add("database", database.Close)
		journal = repository.NewJournalRepository()
	}

	// a nil *JournalRepository must not reach the interfaces
	var sinkJournal events.Journal
	deps := server.Dependencies{TokenHashes: auth.GetConfig().TokenHashes}
	if journal != nil {
		sinkJournal = journal
		deps.Journal = journal
	}

	dispatcher := events.NewDispatcher(log, eventsCfg, NewSinks(eventsCfg, sinkJournal, log)...)
	dispatched := make(chan error, 1)
	go func() { dispatched <- dispatcher.Run(ctx) }()
	closers.Add("events", func() error {
		_ = dispatcher.Close()
		return <-dispatched
	})

	volumes, err := NewVolumeSource(marketCfg, ledgerCfg.AverageVolumes, log)
	if err != nil {
		return err
	}

	led, err := ledger.New(ledgerCfg,
		ledger.WithLogger(log),
		ledger.WithVolumeSource(volumes),
		ledger.WithPublisher(dispatcher),
	)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	deps.Portfolio = led

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx, server.GetConfig(), server.NewRouter(deps))
	})

	if marketCfg.TickFeedURL != "" {
		feed := marketdata.NewFeed(marketCfg, led, log)
		g.Go(func() error { return feed.Run(gctx) })
	}

	if signalsCfg.Enabled {
		if err := database.InitReadOnlyDB(dbCfg); err != nil {
			return fmt.Errorf("init signal inbox: %w", err)
		}
		if !dbCfg.EnableDB {
			closers.Add("signal inbox", database.Close)
		}
		poller := signals.NewPoller(repository.NewSignalRepository(), led, signalsCfg, log)
		g.Go(func() error { return poller.Run(gctx) })
	}

	log.WithFields(logrus.Fields{
		"total_capital": ledgerCfg.TotalCapital,
		"strategies":    len(ledgerCfg.Strategies),
		"journal":       journal != nil,
		"tick_feed":     marketCfg.TickFeedURL != "",
		"signal_inbox":  signalsCfg.Enabled,
	}).Info("portfolio executor started")

	runErr := g.Wait()

	closed, closeErr := led.CloseAll(context.WithoutCancel(ctx), ledger.ExitSystemShutdown)
	log.WithField("closed", len(closed)).Info("positions closed for shutdown")
	log.Info("\n" + led.Report())

	return errors.Join(runErr, closeErr)
}
