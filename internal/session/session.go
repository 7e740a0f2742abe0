// Package session runs one client connection: it decodes inbound bundles
// into server actions and renders server events into outbound bundles.
package session

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/v086"
)

// numAcksForSpeedTest is the number of acks measured before login.
const numAcksForSpeedTest = 3

// Sender writes one datagram to a client address.
type Sender interface {
	Send(addr netip.AddrPort, b []byte) error
}

type Options struct {
	Charset   v086.Charset
	QueueSize int
	// OnClose runs once after the session has stopped.
	OnClose func(*Session)
	Now     func() time.Time
}

type item struct {
	datagram []byte
	event    game.Event
}

// Session is a single-goroutine actor. Datagrams and events are posted to
// its inbox and handled in order by Run.
type Session struct {
	srv  *server.Server
	user *server.User
	out  Sender
	cs   v086.Charset
	now  func() time.Time
	log  zerolog.Logger

	onClose func(*Session)

	mu     sync.RWMutex
	closed bool
	inbox  chan item
	done   chan struct{}

	dropped atomic.Int64

	// Owned by the Run goroutine.
	lastSeen    int
	retries     int
	lastResend  time.Time
	outbox      outbox
	clientCache *GameDataCache
	serverCache *GameDataCache
	speedStart  time.Time
	speedLast   time.Time
	speedCount  int
	stopped     bool
	quitMessage string
}

func New(srv *server.Server, u *server.User, out Sender, opts Options) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		srv:     srv,
		user:    u,
		out:     out,
		cs:      opts.Charset,
		now:     opts.Now,
		onClose: opts.OnClose,
		log: log.With().
			Uint16("user_id", u.ID).
			Str("conn_id", u.ConnID.String()).
			Str("remote_addr", u.Addr.String()).
			Logger(),
		inbox:       make(chan item, opts.QueueSize),
		done:        make(chan struct{}),
		lastSeen:    -1,
		clientCache: NewGameDataCache(GameDataCacheSize),
		serverCache: NewGameDataCache(GameDataCacheSize),
		quitMessage: "Connection closed",
	}
}

func (s *Session) User() *server.User { return s.user }

func (s *Session) Addr() netip.AddrPort { return s.user.Addr }

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Dropped counts datagrams and events discarded because the inbox was full.
func (s *Session) Dropped() int64 { return s.dropped.Load() }

// Post queues an inbound datagram. It never blocks.
func (s *Session) Post(b []byte) bool {
	return s.post(item{datagram: b})
}

// PostEvent implements server.Sink.
func (s *Session) PostEvent(ev game.Event) bool {
	return s.post(item{event: ev})
}

func (s *Session) post(it item) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.inbox <- it:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Close stops accepting input. Run drains what is queued and returns.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.inbox)
	}
}

func (s *Session) Run(ctx context.Context) {
	s.srv.Attach(s.user.ID, s)
	defer s.cleanup()
	s.log.Debug().Msg("session started")

	for {
		select {
		case <-ctx.Done():
			s.quitMessage = "Server shutting down"
			return
		case it, ok := <-s.inbox:
			if !ok {
				return
			}
			if s.stopped {
				continue
			}
			if it.event != nil {
				s.render(it.event)
			} else {
				s.receive(ctx, it.datagram)
			}
		}
	}
}

// stop ends the session after the queued items are drained.
func (s *Session) stop(reason string) {
	if s.stopped {
		return
	}
	s.stopped = true
	if reason != "" {
		s.quitMessage = reason
	}
	s.Close()
}

func (s *Session) cleanup() {
	s.Close()
	s.srv.Detach(s.user.ID)
	if s.user.LoggedIn() {
		if err := s.srv.Quit(s.user, s.quitMessage); err != nil {
			s.log.Debug().Err(err).Msg("quit on close")
		}
	}
	s.srv.Remove(s.user.ID)
	s.log.Info().Str("reason", s.quitMessage).Int64("dropped", s.dropped.Load()).Msg("session closed")
	if s.onClose != nil {
		s.onClose(s)
	}
	close(s.done)
}

// receive decodes one datagram and handles its new frames oldest first.
func (s *Session) receive(ctx context.Context, b []byte) {
	frames, err := v086.DecodeBundle(b, s.lastSeen, s.cs)
	if err != nil {
		if v086.IsFatal(err) {
			s.log.Warn().Err(err).Msg("malformed bundle")
			s.stop("Protocol error")
			return
		}
		s.log.Debug().Err(err).Msg("datagram dropped")
		return
	}
	if len(frames) == 0 {
		s.retries++
		s.resend(s.retries)
		return
	}
	s.retries = 0

	if len(frames) == 1 {
		s.lastSeen = int(frames[0].Number)
		s.handle(ctx, frames[0].Message)
		return
	}
	for i := len(frames) - 1; i >= 0 && !s.stopped; i-- {
		f := frames[i]
		if s.lastSeen >= 0 && uint16(s.lastSeen)+1 != f.Number {
			s.srv.DroppedPacket(s.user)
		}
		s.lastSeen = int(f.Number)
		s.handle(ctx, f.Message)
	}
}

// send numbers m and transmits it bundled with the previous messages.
func (s *Session) send(msgs ...v086.Message) {
	for _, m := range msgs {
		s.outbox.add(m)
		s.transmit(bundleSize)
	}
}

// resend repeats recent messages after the client reported a gap. Resends
// are spaced by at least the maximum ping.
func (s *Session) resend(n int) {
	now := s.now()
	if now.Sub(s.lastResend) <= s.srv.Config().MaxPing() {
		return
	}
	s.lastResend = now
	s.transmit(min(3*n, outboxSize))
}

func (s *Session) transmit(n int) {
	frames := s.outbox.recent(n)
	if len(frames) == 0 {
		return
	}
	if err := s.out.Send(s.user.Addr, v086.EncodeBundle(frames, s.cs)); err != nil {
		s.log.Debug().Err(err).Msg("send failed")
	}
}
