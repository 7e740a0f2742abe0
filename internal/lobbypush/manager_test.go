package lobbypush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kaillera-relay/internal/eventfeed"
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/lobbypush/platforms"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/v086"
)

type fakeAdapter struct {
	mu   sync.Mutex
	err  error
	sent []platforms.Message
	hit  chan struct{}
}

func newFakeAdapter(err error) *fakeAdapter {
	return &fakeAdapter{err: err, hit: make(chan struct{}, 16)}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Send(_ context.Context, _, _ string, msg platforms.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	f.hit <- struct{}{}
	return f.err
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestManager(cfg Config, a platforms.Adapter) *Manager {
	m := NewManager(cfg)
	m.adapters = map[string]platforms.Adapter{"fake": a}
	return m
}

func waitHits(t *testing.T, a *fakeAdapter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-a.hit:
		case <-time.After(2 * time.Second):
			t.Fatalf("adapter calls = %d, want %d", a.calls(), n)
		}
	}
}

func TestManagerPushesFeedEvents(t *testing.T) {
	adapter := newFakeAdapter(nil)
	m := newTestManager(Config{
		Targets: []Target{{Platform: "fake", Endpoint: "x", ScopeType: "all", Enabled: true}},
		Workers: 1,
	}, adapter)
	feed := eventfeed.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, feed)
		close(done)
	}()

	// Subscribing happens inside Run; publish until the first push lands.
	deadline := time.Now().Add(2 * time.Second)
	for adapter.calls() == 0 && time.Now().Before(deadline) {
		feed.Publish(1, server.GameCreated{GameID: 1, RomName: "Street Fighter II", OwnerName: "alice"})
		time.Sleep(20 * time.Millisecond)
	}
	waitHits(t, adapter, 1)
	cancel()
	<-done

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.sent[0].Title != "Game opened" {
		t.Fatalf("title = %q, want Game opened", adapter.sent[0].Title)
	}
}

func TestManagerRetriesUntilMax(t *testing.T) {
	adapter := newFakeAdapter(errors.New("boom"))
	m := newTestManager(Config{
		Targets:          []Target{{Platform: "fake", Endpoint: "x", ScopeType: "all", Enabled: true}},
		Workers:          1,
		RetryMax:         2,
		RetryBase:        time.Millisecond,
		FailureThreshold: 100,
	}, adapter)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.worker(ctx)

	m.dispatch(Event{Type: EventAnnounce, Message: "hi"})
	waitHits(t, adapter, 3)
	select {
	case <-adapter.hit:
		t.Fatalf("adapter called after retries were exhausted")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManagerDropsPermanentFailures(t *testing.T) {
	adapter := newFakeAdapter(&platforms.StatusError{Code: 404})
	m := newTestManager(Config{
		Targets:   []Target{{Platform: "fake", Endpoint: "x", ScopeType: "all", Enabled: true}},
		RetryMax:  3,
		RetryBase: time.Millisecond,
	}, adapter)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.worker(ctx)

	m.dispatch(Event{Type: EventAnnounce, Message: "hi"})
	waitHits(t, adapter, 1)
	select {
	case <-adapter.hit:
		t.Fatalf("404 retried")
	case <-time.After(100 * time.Millisecond):
	}
	if n := m.retryQ.Len(); n != 0 {
		t.Fatalf("retry queue = %d, want 0", n)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newBreaker(2, time.Minute)
	now := time.Unix(1000, 0)
	b.fail("k", now)
	if err := b.allow("k", now); err != nil {
		t.Fatalf("breaker open after one failure")
	}
	b.fail("k", now)
	if err := b.allow("k", now.Add(time.Second)); !errors.Is(err, errCircuitOpen) {
		t.Fatalf("allow = %v, want circuit open", err)
	}
	if err := b.allow("other", now.Add(time.Second)); err != nil {
		t.Fatalf("unrelated target blocked: %v", err)
	}
	if err := b.allow("k", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("breaker still open after cooldown: %v", err)
	}
	b.succeed("k")
	if n := b.tracked(); n != 0 {
		t.Fatalf("tracked = %d after success, want 0", n)
	}
}

func TestRetryQueueStopCancelsPending(t *testing.T) {
	out := make(chan pushJob, 1)
	q := newRetryQueue(out)
	q.Enqueue(pushJob{Attempt: 1}, time.Hour)
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	q.Stop()
	q.Enqueue(pushJob{Attempt: 2}, 0)
	if q.Len() != 0 {
		t.Fatalf("Len after Stop = %d, want 0", q.Len())
	}
	select {
	case job := <-out:
		t.Fatalf("job %+v delivered after Stop", job)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBackoffDoubles(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt, want := range []time.Duration{base, 2 * base, 4 * base} {
		if got := backoff(base, attempt); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestNormalizeTracksGames(t *testing.T) {
	m := NewManager(Config{})
	rec := func(ev eventfeed.Event) eventfeed.Record { return eventfeed.Record{Data: ev} }

	ev, ok := m.normalize(rec(server.GameCreated{GameID: 4, RomName: "Puyo Puyo", OwnerName: "bob"}))
	if !ok || ev.Type != EventGameCreated || ev.RomName != "Puyo Puyo" {
		t.Fatalf("created = %+v, %v", ev, ok)
	}
	waiting := game.Snapshot{ID: 4, RomName: "Puyo Puyo", OwnerName: "bob", Status: v086.GameSynchronizing, NumPlayers: 2, MaxUsers: 2}
	if _, ok := m.normalize(rec(game.GameStatusChanged{Game: waiting})); ok {
		t.Fatalf("synchronizing status pushed")
	}
	playing := waiting
	playing.Status = v086.GamePlaying
	ev, ok = m.normalize(rec(game.GameStatusChanged{Game: playing}))
	if !ok || ev.Type != EventGameStarted || ev.Players != 2 {
		t.Fatalf("started = %+v, %v", ev, ok)
	}
	if _, ok := m.normalize(rec(game.GameStatusChanged{Game: playing})); ok {
		t.Fatalf("second playing status pushed twice")
	}
	ev, ok = m.normalize(rec(server.GameClosed{GameID: 4}))
	if !ok || ev.Type != EventGameClosed || ev.RomName != "Puyo Puyo" || ev.Owner != "bob" {
		t.Fatalf("closed = %+v, %v", ev, ok)
	}
	if _, ok := m.normalize(rec(server.Chat{Name: "x", Message: "y"})); ok {
		t.Fatalf("chat pushed")
	}
}
