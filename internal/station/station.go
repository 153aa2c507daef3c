package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sctest/station/internal/diag"
)

// eventBuffer is the number of events held for a slow presentation layer
// before new ones are dropped.
const eventBuffer = 64

// Link is the companion connection the station drives.
type Link interface {
	Serve(ctx context.Context, h diag.Handler) error
	Send(wireID string)
	Close() error
}

// Station applies companion messages and operator confirmations to the
// result store from a single loop and publishes events for the
// presentation layer.
type Station struct {
	link    Link
	catalog *diag.Catalog
	results *Results
	archive *Archive

	inbox    chan inbound
	confirms chan confirmation
	events   chan Event
	done     chan struct{}
	runOnce  sync.Once

	connected atomic.Bool
	battery   atomic.Pointer[diag.Battery]

	// owned by the loop
	pending map[string]bool
}

type inbound struct {
	msg   *diag.Message
	state diag.State
	peer  diag.Peer
}

type confirmation struct {
	label  string
	passed bool
}

// New creates a Station. Results start Untested for every catalog test.
func New(link Link, catalog *diag.Catalog, archive *Archive) *Station {
	return &Station{
		link:     link,
		catalog:  catalog,
		results:  NewResults(catalog),
		archive:  archive,
		inbox:    make(chan inbound),
		confirms: make(chan confirmation),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		pending:  make(map[string]bool),
	}
}

// Catalog returns the station's test catalog.
func (s *Station) Catalog() *diag.Catalog { return s.catalog }

// Events returns the event stream. It is closed when Run returns.
func (s *Station) Events() <-chan Event { return s.events }

// Run serves the link and runs the consumer loop until ctx is cancelled
// (nil) or the link fails (the accept error). Run may be called once.
func (s *Station) Run(ctx context.Context) error {
	err := errors.New("station already ran")
	s.runOnce.Do(func() { err = s.run(ctx) })
	return err
}

func (s *Station) run(ctx context.Context) error {
	defer close(s.events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.link.Serve(ctx, s) }()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err = <-errc:
			errc = nil
			break loop
		case in := <-s.inbox:
			s.apply(in)
		case c := <-s.confirms:
			s.confirm(c)
		}
	}

	// Unblock the reader before waiting for it in Close.
	close(s.done)
	s.link.Close()
	if errc != nil {
		<-errc
	}
	return err
}

// HandleMessage implements diag.Handler.
func (s *Station) HandleMessage(p diag.Peer, msg diag.Message) {
	select {
	case s.inbox <- inbound{msg: &msg, peer: p}:
	case <-s.done:
	}
}

// HandleState implements diag.Handler.
func (s *Station) HandleState(st diag.State, p diag.Peer) {
	s.connected.Store(st == diag.StateConnected)
	select {
	case s.inbox <- inbound{state: st, peer: p}:
	case <-s.done:
	}
}

func (s *Station) apply(in inbound) {
	if in.msg == nil {
		s.publish(Event{Kind: EventLink, Link: in.state, Peer: in.peer})
		return
	}
	msg := in.msg
	switch msg.Kind {
	case diag.KindResult:
		label, ok := s.catalog.Label(msg.WireID)
		if !ok {
			slog.Warn("result for unknown test, test lists out of sync", "test", msg.WireID)
			return
		}
		res := diag.Fail
		if msg.Passed {
			res = diag.Pass
		}
		s.record(label, msg.WireID, res, false)

	case diag.KindTrigger:
		label, ok := s.catalog.Label(msg.WireID)
		if !ok {
			slog.Warn("confirmation request for unknown test, test lists out of sync", "test", msg.WireID)
			return
		}
		s.pending[label] = true
		slog.Info("manual confirmation requested", "test", label)
		s.publish(Event{Kind: EventConfirmRequest, Label: label, WireID: msg.WireID})

	case diag.KindBattery:
		b := msg.Battery
		s.battery.Store(&b)
		slog.Info("battery", "level", b.Level, "state", b.State)
		s.publish(Event{Kind: EventBattery, Battery: b})

	case diag.KindReport:
		s.applyReport(msg.Report)
	}
}

func (s *Station) applyReport(rep diag.Report) {
	for _, item := range rep.Skipped {
		slog.Warn("report entry skipped", "entry", item)
	}
	for _, e := range rep.Entries {
		if !s.results.Record(e.Label, e.Result) {
			slog.Warn("report entry for unknown test, test lists out of sync", "test", e.Label)
		}
	}
	ev := Event{Kind: EventReport, Entries: len(rep.Entries)}
	ev.Path, ev.Err = s.archive.Save(rep)
	if ev.Err != nil {
		slog.Error("report rendering failed", "err", ev.Err)
	}
	s.publish(ev)
}

func (s *Station) confirm(c confirmation) {
	if !s.pending[c.label] {
		slog.Info("operator override without a pending request", "test", c.label)
	}
	id, _ := s.catalog.WireID(c.label)
	res := diag.Fail
	if c.passed {
		res = diag.Pass
	}
	s.record(c.label, id, res, true)
}

func (s *Station) record(label, wireID string, res diag.Result, manual bool) {
	s.results.Record(label, res)
	delete(s.pending, label)
	slog.Info("test result", "test", label, "result", res.String(), "manual", manual)
	s.publish(Event{Kind: EventResult, Label: label, WireID: wireID, Result: res, Manual: manual})
}

// publish never blocks the loop; the store stays authoritative when a slow
// consumer misses events.
func (s *Station) publish(ev Event) {
	ev.At = time.Now()
	select {
	case s.events <- ev:
	default:
		slog.Warn("event dropped, presentation layer is behind", "event", ev.Kind.String())
	}
}

// RunRemoteTest asks the companion to run the test named by label or wire
// id. Unknown names and a disconnected link are logged no-ops.
func (s *Station) RunRemoteTest(name string) {
	d, ok := s.catalog.Lookup(name)
	if !ok {
		slog.Warn("run request for unknown test", "test", name)
		return
	}
	s.link.Send(d.WireID)
}

// Confirm records the operator's judgment for a test named by label or wire
// id. It is applied by the station loop.
func (s *Station) Confirm(name string, passed bool) error {
	d, ok := s.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", diag.ErrUnknownTest, name)
	}
	select {
	case s.confirms <- confirmation{label: d.Label, passed: passed}:
		return nil
	case <-s.done:
		return errors.New("station stopped")
	}
}

// Snapshot returns the current results in catalog order.
func (s *Station) Snapshot() diag.Report { return s.results.Snapshot() }

// Connected reports whether a companion is attached.
func (s *Station) Connected() bool { return s.connected.Load() }

// Battery returns the last battery info received, if any.
func (s *Station) Battery() (diag.Battery, bool) {
	b := s.battery.Load()
	if b == nil {
		return diag.Battery{}, false
	}
	return *b, true
}

// RenderSnapshot archives a report of the current results and returns its path.
func (s *Station) RenderSnapshot() (string, error) {
	return s.archive.Save(s.results.Snapshot())
}

// LatestReport returns the newest archived report or ErrNoReports.
func (s *Station) LatestReport() (string, error) { return s.archive.Latest() }

// Reports lists archived reports, newest first.
func (s *Station) Reports() ([]string, error) { return s.archive.List() }
