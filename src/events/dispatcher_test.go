package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	seen []Envelope
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, env)
	return s.err
}

func (s *recordingSink) envelopes() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.seen...)
}

func TestDispatcherDeliversInOrderToEverySink(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}

	d := NewDispatcher(logrus.NewEntry(logger), Config{QueueSize: 8}, failing, ok)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	d.Publish(PositionOpened{ID: "p1", Strategy: "ema", Symbol: "NIFTY", Quantity: 50})
	d.Publish(TradeBlocked{Strategy: "ema", Symbol: "NIFTY", Reason: "MAX_POSITIONS"})
	d.Publish(PositionClosed{ID: "p1", Strategy: "ema", Symbol: "NIFTY", Reason: "TARGET"})
	require.NoError(t, d.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after Close")
	}

	got := ok.envelopes()
	require.Len(t, got, 3)
	assert.Equal(t, KindPositionOpened, got[0].Kind)
	assert.Equal(t, KindTradeBlocked, got[1].Kind)
	assert.Equal(t, KindPositionClosed, got[2].Kind)
	assert.NotEqual(t, uuid.Nil, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	assert.Len(t, failing.envelopes(), 3)
	errorsLogged := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["sink"] == "failing" {
			errorsLogged++
		}
	}
	assert.Equal(t, 3, errorsLogged)
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	d := NewDispatcher(logrus.NewEntry(logger), Config{QueueSize: 1})

	// nobody is running the queue
	d.Publish(TradeBlocked{Strategy: "a"})
	d.Publish(TradeBlocked{Strategy: "b"})
	d.Publish(TradeBlocked{Strategy: "c"})

	assert.Equal(t, int64(2), d.Dropped())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	d := NewDispatcher(logrus.NewEntry(logger), Config{})

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	d.Publish(TradeBlocked{Strategy: "late"})

	assert.Equal(t, int64(1), d.Dropped())
	require.NoError(t, d.Run(context.Background()))
}

func TestLogSink(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	sink := NewLogSink(logrus.NewEntry(logger))

	env := NewEnvelope(PositionClosed{ID: "p1", Strategy: "ema", Symbol: "NIFTY", PnL: 20000, Reason: "TARGET"}, time.Now())
	require.NoError(t, sink.Handle(context.Background(), env))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "position closed", entry.Message)
	assert.Equal(t, "TARGET", entry.Data["reason"])
	assert.Equal(t, 20000.0, entry.Data["pnl"])
}

type fakeJournal struct {
	opened  []PositionOpened
	closed  []PositionClosed
	blocked []TradeBlocked
}

func (f *fakeJournal) RecordOpened(_ context.Context, _ uuid.UUID, _ time.Time, ev PositionOpened) error {
	f.opened = append(f.opened, ev)
	return nil
}

func (f *fakeJournal) RecordClosed(_ context.Context, _ uuid.UUID, _ time.Time, ev PositionClosed) error {
	f.closed = append(f.closed, ev)
	return nil
}

func (f *fakeJournal) RecordBlocked(_ context.Context, _ uuid.UUID, _ time.Time, ev TradeBlocked) error {
	f.blocked = append(f.blocked, ev)
	return nil
}

func TestJournalSinkRoutesByKind(t *testing.T) {
	j := &fakeJournal{}
	sink := NewJournalSink(j)
	ctx := context.Background()

	require.NoError(t, sink.Handle(ctx, NewEnvelope(PositionOpened{ID: "p1"}, time.Now())))
	require.NoError(t, sink.Handle(ctx, NewEnvelope(PositionClosed{ID: "p1"}, time.Now())))
	require.NoError(t, sink.Handle(ctx, NewEnvelope(TradeBlocked{Reason: "MAX_POSITIONS"}, time.Now())))

	assert.Len(t, j.opened, 1)
	assert.Len(t, j.closed, 1)
	require.Len(t, j.blocked, 1)
	assert.Equal(t, "MAX_POSITIONS", j.blocked[0].Reason)
}
