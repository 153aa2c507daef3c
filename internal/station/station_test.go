package station

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctest/station/internal/diag"
)

// fakeLink stands in for diag.Link; tests drive the handler directly.
type fakeLink struct {
	handlers  chan diag.Handler
	stop      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	sent []string
}

func newFakeLink() *fakeLink {
	return &fakeLink{handlers: make(chan diag.Handler, 1), stop: make(chan struct{})}
}

func (f *fakeLink) Serve(ctx context.Context, h diag.Handler) error {
	f.handlers <- h
	select {
	case <-ctx.Done():
	case <-f.stop:
	}
	return nil
}

func (f *fakeLink) Send(wireID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, wireID)
}

func (f *fakeLink) Close() error {
	f.closeOnce.Do(func() { close(f.stop) })
	return nil
}

func (f *fakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

var fixedNow = time.Date(2026, 10, 15, 14, 30, 5, 0, time.Local)

type harness struct {
	st      *Station
	link    *fakeLink
	h       diag.Handler
	archive *Archive
	cancel  context.CancelFunc
	done    chan error
	stopped sync.Once
}

func startStation(t *testing.T) *harness {
	t.Helper()
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)
	archive.now = func() time.Time { return fixedNow }

	link := newFakeLink()
	st := New(link, diag.DefaultCatalog(), archive)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()

	var h diag.Handler
	select {
	case h = <-link.handlers:
	case <-time.After(2 * time.Second):
		t.Fatal("station did not start serving")
	}
	hs := &harness{st: st, link: link, h: h, archive: archive, cancel: cancel, done: done}
	t.Cleanup(hs.stop)
	return hs
}

func (hs *harness) stop() {
	hs.stopped.Do(func() {
		hs.cancel()
		<-hs.done
	})
}

func (hs *harness) feed(t *testing.T, raw string) {
	t.Helper()
	msg, err := diag.Decode(raw)
	require.NoError(t, err, raw)
	hs.h.HandleMessage(diag.Peer{ID: "test", Addr: "127.0.0.1:1"}, msg)
}

func (hs *harness) waitEvent(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-hs.st.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func resultsOf(rep diag.Report) map[string]diag.Result {
	m := make(map[string]diag.Result, len(rep.Entries))
	for _, e := range rep.Entries {
		m[e.Label] = e.Result
	}
	return m
}

func TestStation_ResultPipeline(t *testing.T) {
	hs := startStation(t)

	hs.feed(t, "TEST_ACCEL_OK")
	hs.waitEvent(t, EventResult)
	hs.feed(t, "TEST_PROXIMITE_FAIL")
	ev := hs.waitEvent(t, EventResult)
	assert.Equal(t, "Proximité", ev.Label)
	assert.Equal(t, diag.Fail, ev.Result)
	assert.False(t, ev.Manual)

	got := resultsOf(hs.st.Snapshot())
	for label, res := range got {
		switch label {
		case "Accéléromètre":
			assert.Equal(t, diag.Pass, res, label)
		case "Proximité":
			assert.Equal(t, diag.Fail, res, label)
		default:
			assert.Equal(t, diag.Untested, res, label)
		}
	}
}

func TestStation_UnknownTestIgnored(t *testing.T) {
	hs := startStation(t)
	before := len(hs.st.Snapshot().Entries)

	hs.feed(t, "TEST_FOOBAR_OK")
	hs.feed(t, "TEST_FLASH_OK")
	ev := hs.waitEvent(t, EventResult)
	assert.Equal(t, "Flash", ev.Label)

	snap := hs.st.Snapshot()
	assert.Len(t, snap.Entries, before)
	_, ok := resultsOf(snap)["Foobar"]
	assert.False(t, ok)
}

func TestStation_RecordIdempotent(t *testing.T) {
	once := startStation(t)
	once.feed(t, "TEST_FLASH_OK")
	once.waitEvent(t, EventResult)

	twice := startStation(t)
	twice.feed(t, "TEST_FLASH_OK")
	twice.waitEvent(t, EventResult)
	twice.feed(t, "TEST_FLASH_OK")
	twice.waitEvent(t, EventResult)

	assert.Equal(t, once.st.Snapshot(), twice.st.Snapshot())
}

func TestStation_ReportMessage(t *testing.T) {
	hs := startStation(t)

	hs.feed(t, "DIAGNOSTIC_RAPPORT:Flash:OK;Vibreur:KO")
	ev := hs.waitEvent(t, EventReport)
	require.NoError(t, ev.Err)
	assert.Equal(t, 2, ev.Entries)
	assert.Equal(t, filepath.Join(hs.archive.Dir(), "rapport_diagnostic_20261015_143005.pdf"), ev.Path)
	assert.FileExists(t, ev.Path)

	got := resultsOf(hs.st.Snapshot())
	assert.Equal(t, diag.Pass, got["Flash"])
	assert.Equal(t, diag.Fail, got["Vibreur"])

	latest, err := hs.st.LatestReport()
	require.NoError(t, err)
	assert.Equal(t, ev.Path, latest)
}

func TestStation_ManualConfirmation(t *testing.T) {
	hs := startStation(t)

	hs.feed(t, "TRIGGERED:HP_ECOUTEUR")
	req := hs.waitEvent(t, EventConfirmRequest)
	assert.Equal(t, "HP Écouteur", req.Label)

	require.NoError(t, hs.st.Confirm("HP_ECOUTEUR", true))
	ev := hs.waitEvent(t, EventResult)
	assert.Equal(t, "HP Écouteur", ev.Label)
	assert.Equal(t, diag.Pass, ev.Result)
	assert.True(t, ev.Manual)

	require.NoError(t, hs.st.Confirm("HP Bas (Média)", false))
	ev = hs.waitEvent(t, EventResult)
	assert.Equal(t, "HP_BAS_MEDIA", ev.WireID)
	assert.Equal(t, diag.Fail, ev.Result)

	assert.ErrorIs(t, hs.st.Confirm("Haut-parleur", true), diag.ErrUnknownTest)
}

func TestStation_BatteryAndLink(t *testing.T) {
	hs := startStation(t)
	_, ok := hs.st.Battery()
	assert.False(t, ok)

	peer := diag.Peer{ID: "p1", Addr: "127.0.0.1:5555"}
	hs.h.HandleState(diag.StateConnected, peer)
	ev := hs.waitEvent(t, EventLink)
	assert.Equal(t, diag.StateConnected, ev.Link)
	assert.Equal(t, peer, ev.Peer)
	assert.True(t, hs.st.Connected())

	hs.feed(t, "INFO_BATTERY:64|charging")
	bev := hs.waitEvent(t, EventBattery)
	assert.Equal(t, diag.Battery{Level: 64, State: "charging"}, bev.Battery)
	b, ok := hs.st.Battery()
	assert.True(t, ok)
	assert.Equal(t, 64, b.Level)

	hs.h.HandleState(diag.StateListening, peer)
	ev = hs.waitEvent(t, EventLink)
	assert.Equal(t, diag.StateListening, ev.Link)
	assert.False(t, hs.st.Connected())
}

func TestStation_RunRemoteTest(t *testing.T) {
	hs := startStation(t)

	hs.st.RunRemoteTest("HP Bas (Média)")
	hs.st.RunRemoteTest("accel")
	hs.st.RunRemoteTest("Haut-parleur")
	assert.Equal(t, []string{"HP_BAS_MEDIA", "ACCEL"}, hs.link.Sent())
}

func TestStation_RunRemoteTestDisconnected(t *testing.T) {
	link, err := diag.Listen("127.0.0.1:0")
	require.NoError(t, err)
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)
	st := New(link, diag.DefaultCatalog(), archive)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()

	assert.False(t, st.Connected())
	assert.NotPanics(t, func() { st.RunRemoteTest("Flash") })

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	_, open := <-st.Events()
	assert.False(t, open, "events channel closed after Run")
}

func TestStation_RenderSnapshot(t *testing.T) {
	hs := startStation(t)
	_, err := hs.st.LatestReport()
	assert.ErrorIs(t, err, ErrNoReports)

	hs.feed(t, "TEST_WIFI_OK")
	hs.waitEvent(t, EventResult)

	path, err := hs.st.RenderSnapshot()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ReportName(fixedNow)))

	reports, err := hs.st.Reports()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, reports)
}

func TestStation_RunOnce(t *testing.T) {
	hs := startStation(t)
	hs.stop()
	assert.Error(t, hs.st.Run(context.Background()))
}
