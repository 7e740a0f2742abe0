package server

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/store"
)

type GameRecordSink interface {
	InsertGameRecord(ctx context.Context, rec store.GameRecord) (string, error)
}

// StoreStats writes a record for every started game. Games call it under
// their lock, so records are queued and written by Run.
type StoreStats struct {
	sink    GameRecordSink
	queue   chan store.GameRecord
	dropped atomic.Int64
	now     func() time.Time
}

func NewStoreStats(sink GameRecordSink, buffer int) *StoreStats {
	if buffer <= 0 {
		buffer = 64
	}
	return &StoreStats{sink: sink, queue: make(chan store.GameRecord, buffer), now: time.Now}
}

func (s *StoreStats) MarkGameAsStarted(snap game.Snapshot) {
	players, err := json.Marshal(snap.Players)
	if err != nil {
		log.Warn().Err(err).Uint16("game_id", snap.ID).Msg("encode game record players")
		players = json.RawMessage("[]")
	}
	now := s.now()
	rec := store.GameRecord{
		ID:                store.NewIDAt(now),
		GameID:            int(snap.ID),
		RomName:           snap.RomName,
		ClientType:        snap.ClientType,
		OwnerName:         snap.OwnerName,
		NumPlayers:        len(snap.Players),
		HighestFrameDelay: snap.FrameDelay,
		Players:           players,
		StartedAt:         now,
	}
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
		log.Warn().Uint16("game_id", snap.ID).Msg("game record queue full")
	}
}

// Dropped reports how many records were discarded on a full queue.
func (s *StoreStats) Dropped() int64 { return s.dropped.Load() }

// Run writes queued records until ctx is done.
func (s *StoreStats) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-s.queue:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if _, err := s.sink.InsertGameRecord(wctx, rec); err != nil {
				log.Warn().Err(err).Int("game_id", rec.GameID).Msg("insert game record failed")
			}
			cancel()
		}
	}
}

// MultiStats fans MarkGameAsStarted out to several collectors.
type MultiStats []game.StatsCollector

func (m MultiStats) MarkGameAsStarted(snap game.Snapshot) {
	for _, c := range m {
		c.MarkGameAsStarted(snap)
	}
}
