package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/v086"
)

// SubmitInput takes one GameData payload from a player. The first frames of
// a game are answered with zeros while the player's input is held back to
// even out delay between players. After that the input is queued, fanned out
// to every player whose tick is complete, and the call waits, bounded, for
// the other players so that this player's input reaches everyone.
//
// A *GameDataError means the input was not accepted; see its Response.
func (g *Game) SubmitInput(ctx context.Context, userID uint16, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playerLocked(userID)
	if p == nil {
		return actionErr(ErrNotInGame, "Game data failed: not in game.")
	}
	if g.queueLocked(p) == nil {
		return nil
	}
	conn := g.actionsPerMessage
	if len(data) < conn {
		return actionErr(ErrInvalidState, "Game data is shorter than one action.")
	}
	now := g.opts.Now()
	p.lastInputAt = now

	if p.frameCount < p.totalDelay {
		p.bytesPerAction = len(data) / conn
		p.arraySize = len(g.queues) * conn * p.bytesPerAction
		p.lostInput = append(p.lostInput, append([]byte(nil), data...))
		p.frameCount++
		g.hub.Deliver(p.UserID, GameData{GameID: g.ID, Data: make([]byte, p.arraySize)})
		return nil
	}

	in := data
	if len(p.lostInput) > 0 {
		in = p.lostInput[0]
		p.lostInput[0] = nil
		p.lostInput = p.lostInput[1:]
	}

	err := g.addDataLocked(ctx, p, in, now)
	var de *GameDataError
	if !errors.As(err, &de) {
		p.dataErrorAt = time.Time{}
		return err
	}
	if p.dataErrorAt.IsZero() {
		p.dataErrorAt = now
		return de
	}
	if now.Sub(p.dataErrorAt) > dataErrorGrace {
		log.Info().Uint16("user_id", p.UserID).Uint16("game_id", g.ID).Msg("game data errors exceeded drop timeout")
		return &GameDataError{Reason: de.Reason}
	}
	return de
}

func (g *Game) addDataLocked(ctx context.Context, p *Player, data []byte, now time.Time) error {
	conn := g.actionsPerMessage
	if !g.synced {
		return &GameDataError{
			Reason:   "Game is desynced.",
			Response: reflectInput(data, conn, p.queue+1, len(g.queues)),
		}
	}
	bpa := len(data) / conn
	own := g.queues[p.queue]
	own.Add(data)
	g.opts.AutoFire.AddData(own.PlayerNumber, data, bpa)
	if g.recorder != nil {
		g.recorder.Received(now, own.PlayerNumber)
	}
	g.cond.Broadcast()

	stopWake := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.mu.Unlock()
		g.cond.Broadcast()
	})
	defer stopWake()

	need := conn * bpa
	timeouts := 0
	for {
		g.fanOutLocked(bpa, now)
		if g.closed || !g.synced || !own.Synced() {
			return nil
		}
		waiting := g.waitingReadersLocked(own, need)
		if len(waiting) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !g.waitLocked(g.opts.RetryWait) {
			continue
		}
		timeouts++
		for _, reader := range waiting {
			for i, q := range g.queues {
				if q.Synced() && q.Available(reader) < need {
					g.timeoutLocked(i, timeouts)
				}
			}
		}
		now = g.opts.Now()
	}
}

// fanOutLocked sends a complete tick to every playing player for whom each
// synced queue holds a full message. One pass delivers at most one message
// per player.
func (g *Game) fanOutLocked(bpa int, now time.Time) {
	conn := g.actionsPerMessage
	nq := len(g.queues)
	need := conn * bpa
	first := g.firstPlayingLocked()
	slot := make([]byte, bpa)

	for _, p := range g.players {
		reader := p.queue
		if reader < 0 || reader >= nq || p.Status != v086.UserPlaying {
			continue
		}
		complete := true
		for _, q := range g.queues {
			if q.Synced() && q.Available(reader) < need {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		resp := make([]byte, nq*need)
		for ac := 0; ac < conn; ac++ {
			for qi, q := range g.queues {
				q.Get(reader, slot)
				copy(resp[ac*(nq*bpa)+qi*bpa:], slot)
			}
		}
		g.hub.Deliver(p.UserID, GameData{GameID: g.ID, Data: resp})
		p.lag.Update(p.lastInputAt)
		if p == first {
			g.lag.Update(now)
			if g.recorder != nil {
				g.recorder.FanOut(now)
				if now.Sub(g.lastLagstat) >= g.opts.LagWindow {
					g.recorder.Lagstat(now, g.opts.LagWindow, g.lag.Lag(), g.playerInfosLocked(true))
					g.lastLagstat = now
				}
			}
		}
	}
}

// waitingReadersLocked lists the readers that have not yet received own's
// latest message.
func (g *Game) waitingReadersLocked(own *ActionQueue, need int) []int {
	var out []int
	for _, p := range g.players {
		reader := p.queue
		if reader < 0 || reader >= len(g.queues) || p.Status != v086.UserPlaying {
			continue
		}
		if own.Available(reader) >= need {
			out = append(out, reader)
		}
	}
	return out
}

// waitLocked blocks on the game condition for at most d and reports whether
// the wait ran out.
func (g *Game) waitLocked(d time.Duration) bool {
	expired := false
	t := time.AfterFunc(d, func() {
		g.mu.Lock()
		expired = true
		g.mu.Unlock()
		g.cond.Broadcast()
	})
	g.cond.Wait()
	t.Stop()
	return expired
}

// timeoutLocked handles the n-th expired wait on queue i. Every 12th one is
// announced; at 120 the queue's player is desynced.
func (g *Game) timeoutLocked(i, n int) {
	q := g.queues[i]
	if !g.synced || !q.Synced() || q.lastTimeout == n {
		return
	}
	q.lastTimeout = n
	if n < desyncTimeouts {
		if n%timeoutNoticeGap == 0 {
			log.Info().Uint16("user_id", q.UserID).Uint16("game_id", g.ID).Int("timeout", n/timeoutNoticeGap).Msg("player timeout")
			g.toAllLocked(GameTimeout{GameID: g.ID, UserID: q.UserID, Name: q.Name, Number: n / timeoutNoticeGap})
		}
		return
	}
	q.MarkDesynced()
	log.Info().Uint16("user_id", q.UserID).Uint16("game_id", g.ID).Msg("player desynced: lagged")
	g.toAllLocked(PlayerDesynced{GameID: g.ID, UserID: q.UserID, Name: q.Name, Message: q.Name + " desynced: lagged!"})
	if g.syncedCountLocked() < 2 {
		g.desyncAllLocked("less than 2 players synced")
	}
	g.cond.Broadcast()
}

func (g *Game) firstPlayingLocked() *Player {
	for _, p := range g.players {
		if p.Status == v086.UserPlaying && g.queueLocked(p) != nil {
			return p
		}
	}
	return nil
}
