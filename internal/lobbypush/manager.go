package lobbypush

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/eventfeed"
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/lobbypush/platforms"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/v086"
)

// gameState is what the manager remembers about an open game so later
// events can name it. Owned by the Run goroutine.
type gameState struct {
	romName string
	owner   string
	status  v086.GameStatus
}

type Manager struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	dispatchCh chan pushJob
	retryQ     *retryQueue
	breaker    *breaker
	now        func() time.Time

	games map[uint16]gameState
}

func NewManager(cfg Config) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	m := &Manager{
		cfg: cfg,
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"feishu":  platforms.NewFeishuAdapter(client),
		},
		dispatchCh: make(chan pushJob, cfg.DispatchBuffer),
		breaker:    newBreaker(cfg.FailureThreshold, cfg.CircuitOpenDuration),
		now:        time.Now,
		games:      map[uint16]gameState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh)
	return m
}

// Run follows feed until ctx is done or the feed closes. It returns at once
// when no targets are configured.
func (m *Manager) Run(ctx context.Context, feed *eventfeed.Feed) {
	if !m.cfg.Enabled() {
		return
	}
	ch := feed.Subscribe()
	defer feed.Unsubscribe(ch)
	defer m.retryQ.Stop()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	for i := 0; i < m.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx)
		}()
	}

	log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("lobby push started")
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if ev, ok := m.normalize(rec); ok {
				m.dispatch(ev)
			}
		}
	}
}

func (m *Manager) dispatch(ev Event) {
	for _, target := range MatchTargets(m.cfg.Targets, ev) {
		select {
		case m.dispatchCh <- pushJob{Target: target, Event: ev}:
			metricPushQueuedTotal.Add(1)
			metricPushQueueLen.Set(int64(len(m.dispatchCh)))
		default:
			metricPushDroppedTotal.Add(1)
			log.Warn().Str("event", ev.Type).Str("platform", target.Platform).Msg("lobby push queue full")
		}
	}
}

// normalize reduces a feed record to a push event and tracks open games.
func (m *Manager) normalize(rec eventfeed.Record) (Event, bool) {
	ev := Event{ServerTS: rec.ServerTS, GameID: rec.GameID}
	switch e := rec.Data.(type) {
	case server.GameCreated:
		m.games[e.GameID] = gameState{romName: e.RomName, owner: e.OwnerName, status: v086.GameWaiting}
		ev.Type = EventGameCreated
		ev.GameID, ev.RomName, ev.Owner = e.GameID, e.RomName, e.OwnerName
		return ev, true
	case game.GameStatusChanged:
		g := e.Game
		prev, known := m.games[g.ID]
		m.games[g.ID] = gameState{romName: g.RomName, owner: g.OwnerName, status: g.Status}
		if g.Status != v086.GamePlaying || (known && prev.status == v086.GamePlaying) {
			return Event{}, false
		}
		ev.Type = EventGameStarted
		ev.GameID, ev.RomName, ev.Owner = g.ID, g.RomName, g.OwnerName
		ev.Players, ev.MaxUsers = g.NumPlayers, g.MaxUsers
		return ev, true
	case server.GameClosed:
		st := m.games[e.GameID]
		delete(m.games, e.GameID)
		ev.Type = EventGameClosed
		ev.GameID, ev.RomName, ev.Owner = e.GameID, st.romName, st.owner
		return ev, true
	case server.Announcement:
		ev.Type = EventAnnounce
		ev.Message = e.Message
		return ev, true
	case server.UserJoined:
		ev.Type = EventUserJoined
		ev.UserName = e.Name
		return ev, true
	case server.UserQuit:
		ev.Type = EventUserQuit
		ev.UserName, ev.Message = e.Name, e.Message
		return ev, true
	}
	return Event{}, false
}
