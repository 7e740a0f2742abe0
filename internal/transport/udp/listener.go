// Package udp serves the v086 protocol on one UDP socket. Connect messages
// are answered in place and every other datagram is routed to the session
// of its sender.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/server"
	"kaillera-relay/internal/session"
	"kaillera-relay/internal/v086"
)

const maxDatagram = 64 * 1024

type Options struct {
	Charset   v086.Charset
	QueueSize int
}

type Listener struct {
	srv  *server.Server
	conn *net.UDPConn
	port int
	opts Options

	sessions sync.Map // netip.AddrPort -> *session.Session
	wg       sync.WaitGroup
}

func Listen(addr string, srv *server.Server, opts Options) (*Listener, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{
		srv:  srv,
		conn: conn,
		port: conn.LocalAddr().(*net.UDPAddr).Port,
		opts: opts,
	}, nil
}

func (l *Listener) Port() int { return l.port }

func (l *Listener) LocalAddr() net.Addr { return l.conn.LocalAddr() }

// Serve reads datagrams until ctx is done. Sessions are stopped and waited
// for before it returns.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.conn.Close() })
	defer stop()
	log.Info().Str("addr", l.conn.LocalAddr().String()).Msg("udp listener started")

	buf := make([]byte, maxDatagram)
	var err error
	for {
		n, addr, rerr := l.conn.ReadFromUDPAddrPort(buf)
		if rerr != nil {
			if ctx.Err() == nil && !errors.Is(rerr, net.ErrClosed) {
				err = fmt.Errorf("udp read: %w", rerr)
			}
			break
		}
		metricDatagramsIn.Add(1)
		l.handle(ctx, addr, append([]byte(nil), buf[:n]...))
	}

	l.sessions.Range(func(_, v any) bool {
		v.(*session.Session).Close()
		return true
	})
	l.wg.Wait()
	_ = l.conn.Close()
	log.Info().Msg("udp listener stopped")
	return err
}

func (l *Listener) handle(ctx context.Context, addr netip.AddrPort, b []byte) {
	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	if !v086.IsConnectMessage(b) {
		v, ok := l.sessions.Load(addr)
		if !ok {
			metricUnknownSender.Add(1)
			return
		}
		if !v.(*session.Session).Post(b) {
			metricDatagramsDropped.Add(1)
		}
		return
	}

	msg, err := v086.ParseConnect(b)
	if err != nil {
		log.Debug().Err(err).Str("remote_addr", addr.String()).Msg("bad connect message")
		return
	}
	switch msg.Kind {
	case v086.ConnectPing:
		l.send(addr, v086.Pong())
	case v086.ConnectHello:
		l.connect(ctx, addr, msg.Protocol)
	}
}

func (l *Listener) connect(ctx context.Context, addr netip.AddrPort, protocol string) {
	if protocol != v086.ProtocolVersion {
		log.Info().Str("remote_addr", addr.String()).Str("protocol", protocol).Msg("unsupported protocol")
		return
	}
	if v, ok := l.sessions.Load(addr); ok {
		// The client restarted; its old session quits on its own goroutine.
		v.(*session.Session).Close()
	}
	u, err := l.srv.Connect(addr, protocol)
	if err != nil {
		if errors.Is(err, server.ErrServerFull) {
			metricServerFull.Add(1)
			l.send(addr, v086.TooManyUsers())
			return
		}
		log.Warn().Err(err).Str("remote_addr", addr.String()).Msg("connect failed")
		return
	}
	s := session.New(l.srv, u, l, session.Options{
		Charset:   l.opts.Charset,
		QueueSize: l.opts.QueueSize,
		OnClose:   l.forget,
	})
	l.sessions.Store(addr, s)
	metricConnects.Add(1)
	metricSessionsActive.Add(1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		s.Run(ctx)
	}()
	l.send(addr, v086.HelloD00D(l.port))
}

func (l *Listener) forget(s *session.Session) {
	l.sessions.CompareAndDelete(s.Addr(), s)
	metricSessionsActive.Add(-1)
}

// Sessions returns the number of live sessions.
func (l *Listener) Sessions() int {
	n := 0
	l.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Send implements session.Sender.
func (l *Listener) Send(addr netip.AddrPort, b []byte) error {
	if _, err := l.conn.WriteToUDPAddrPort(b, addr); err != nil {
		metricSendErrors.Add(1)
		return err
	}
	metricDatagramsOut.Add(1)
	return nil
}

func (l *Listener) send(addr netip.AddrPort, b []byte) {
	if err := l.Send(addr, b); err != nil {
		log.Debug().Err(err).Str("remote_addr", addr.String()).Msg("udp send failed")
	}
}
