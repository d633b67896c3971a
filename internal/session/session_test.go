package session

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/example/scamshield/internal/kvstore"
	"github.com/example/scamshield/internal/landing"
	"github.com/example/scamshield/internal/scanner"
)

func newTestManager(t *testing.T) (*Manager, clockwork.FakeClock, *kvstore.MemoryStore) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore(clock)
	m := NewManager(store, scanner.NewDelayScanner(clock, scanner.DefaultDelay), clock, time.Hour, zap.NewNop())
	t.Cleanup(m.Close)
	return m, clock, store
}

func TestSessionNavigationAndRemount(t *testing.T) {
	m, clock, _ := newTestManager(t)
	s := m.Create()

	page := s.Mount()
	if s.Mount() != page {
		t.Fatal("expected the same page while idle")
	}

	page.SetURL("https://fake-bank.example")
	if err := page.SubmitScan(scanner.KindURL); err != nil {
		t.Fatal(err)
	}
	clock.BlockUntil(1)
	clock.Advance(scanner.DefaultDelay)
	<-page.Done()

	path, ok := s.TakeRedirect()
	if !ok || path != landing.AnalysisPath {
		t.Fatalf("expected pending redirect to %s, got %q", landing.AnalysisPath, path)
	}
	if _, ok := s.TakeRedirect(); ok {
		t.Fatal("redirect must be consumed once")
	}

	handoff, ok := s.Handoff()
	if !ok || handoff.URL != "https://fake-bank.example" {
		t.Fatalf("unexpected handoff %+v", handoff)
	}

	next := s.Mount()
	if next == page {
		t.Fatal("expected a fresh page after navigation")
	}
	if next.Scanning() || next.URL() != "" {
		t.Fatal("fresh page must start idle and empty")
	}
}

func TestViewNeverLosesCompletedScan(t *testing.T) {
	for run := 0; run < 200; run++ {
		m := NewManager(kvstore.NewMemoryStore(nil), scanner.NewDelayScanner(nil, time.Microsecond), nil, time.Hour, zap.NewNop())
		s := m.Create()

		page := s.Mount()
		if err := page.SubmitScan(scanner.KindScreenshot); err != nil {
			t.Fatal(err)
		}

		deadline := time.Now().Add(time.Second)
		for {
			snapshot, redirect := s.View()
			if redirect != "" {
				if redirect != landing.AnalysisPath {
					t.Fatalf("run %d: unexpected redirect %q", run, redirect)
				}
				break
			}
			if !snapshot.Scanning {
				t.Fatalf("run %d: idle page rendered without a redirect while the scan completed", run)
			}
			if time.Now().After(deadline) {
				t.Fatalf("run %d: scan never completed", run)
			}
		}
		m.Close()
	}
}

func TestViewRedirectsAfterNavigation(t *testing.T) {
	m, clock, _ := newTestManager(t)
	s := m.Create()

	if snapshot, redirect := s.View(); redirect != "" || snapshot.State != "idle" {
		t.Fatalf("expected idle page without redirect, got %+v %q", snapshot, redirect)
	}
	page := s.Mount()
	if err := page.RunDemo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if snapshot, redirect := s.View(); redirect != "" || !snapshot.Scanning {
		t.Fatalf("expected scanning page, got %+v %q", snapshot, redirect)
	}

	clock.BlockUntil(1)
	clock.Advance(scanner.DefaultDelay)
	<-page.Done()

	if _, redirect := s.View(); redirect != landing.AnalysisPath {
		t.Fatalf("expected redirect to %s, got %q", landing.AnalysisPath, redirect)
	}
	if snapshot, redirect := s.View(); redirect != "" || snapshot.State != "idle" {
		t.Fatalf("expected a fresh idle page once the redirect was taken, got %+v %q", snapshot, redirect)
	}
}

func TestSessionNotificationsDrain(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Create()

	if err := s.Mount().SubmitScan(scanner.KindURL); err == nil {
		t.Fatal("expected missing url error")
	}
	notes := s.Notifications()
	if len(notes) != 1 || notes[0] != (Notification{Level: LevelError, Message: landing.MsgMissingURL}) {
		t.Fatalf("unexpected notifications %v", notes)
	}
	if len(s.Notifications()) != 0 {
		t.Fatal("expected notifications to be drained")
	}
}

func TestSessionSentinelsAreScoped(t *testing.T) {
	m, _, store := newTestManager(t)
	s := m.Create()

	if err := s.Mount().RunDemo(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(context.Background(), kvstore.Key(s.ID, landing.SentinelDemoMode))
	if err != nil || got != landing.SentinelValue {
		t.Fatalf("expected scoped demoMode sentinel, got %q, %v", got, err)
	}
	if v, err := m.Sentinels(s.ID).Get(context.Background(), landing.SentinelDemoMode); err != nil || v != "true" {
		t.Fatalf("expected sentinel through manager view, got %q, %v", v, err)
	}
}

type blockingScanner struct{}

func (blockingScanner) Scan(ctx context.Context, _ scanner.Input) (*scanner.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(kvstore.NewMemoryStore(clock), blockingScanner{}, clock, time.Hour, zap.NewNop())
	t.Cleanup(m.Close)

	stale := m.Create()
	page := stale.Mount()
	if err := page.SubmitScan(scanner.KindScreenshot); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Minute)
	fresh := m.Create()
	clock.Advance(31 * time.Minute)
	if _, ok := m.Lookup(fresh.ID); !ok {
		t.Fatal("expected fresh session to be live")
	}

	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if _, ok := m.Lookup(stale.ID); ok {
		t.Fatal("expected stale session to be removed")
	}
	select {
	case <-page.Done():
	case <-time.After(time.Second):
		t.Fatal("expected pending scan of expired session to be abandoned")
	}
	if _, ok := stale.TakeRedirect(); ok {
		t.Fatal("abandoned scan must not navigate")
	}
	if m.Len() != 1 {
		t.Fatalf("expected one live session, got %d", m.Len())
	}
}

func TestRunSweepsOnTicker(t *testing.T) {
	m, clock, _ := newTestManager(t)
	m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Run(ctx, time.Minute)
		close(stopped)
	}()

	clock.BlockUntil(1)
	clock.Advance(2 * time.Hour)

	deadline := time.Now().Add(time.Second)
	for m.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Len() != 0 {
		t.Fatal("expected ticker sweep to expire the session")
	}

	cancel()
	<-stopped
}
