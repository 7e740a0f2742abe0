package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/v086"
)

func startListener(t *testing.T, maxUsers int) (*Listener, *server.Server) {
	t.Helper()
	cfg := config.RelayConfig{
		MaxPingMS:              1000,
		MaxUsers:               maxUsers,
		MaxGames:               10,
		AllowedConnectionTypes: []int{1, 2, 3, 4, 5, 6},
		MaxUserNameLength:      31,
	}
	srv := server.New(cfg, server.Deps{})
	l, err := Listen("127.0.0.1:0", srv, Options{Charset: v086.ShiftJIS, QueueSize: 16})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Errorf("Serve did not return")
		}
	})
	return l, srv
}

func dial(t *testing.T, l *Listener) *net.UDPConn {
	t.Helper()
	c, err := net.DialUDP("udp", nil, l.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func roundTrip(t *testing.T, c *net.UDPConn, out []byte) []byte {
	t.Helper()
	if _, err := c.Write(out); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf[:n]
}

func TestPingPong(t *testing.T) {
	l, _ := startListener(t, 10)
	c := dial(t, l)
	if got := string(roundTrip(t, c, v086.Ping())); got != string(v086.Pong()) {
		t.Fatalf("reply = %q, want PONG", got)
	}
}

func TestHelloStartsSession(t *testing.T) {
	l, srv := startListener(t, 10)
	c := dial(t, l)

	port, err := v086.ParseHelloD00D(roundTrip(t, c, v086.Hello(v086.ProtocolVersion)))
	if err != nil {
		t.Fatalf("ParseHelloD00D: %v", err)
	}
	if port != l.Port() {
		t.Fatalf("port = %d, want %d", port, l.Port())
	}
	if srv.UserCount() != 1 {
		t.Fatalf("UserCount() = %d, want 1", srv.UserCount())
	}

	info := v086.EncodeBundle([]v086.Frame{{Number: 0, Message: v086.UserInformation{
		Username: "alice", ClientType: "MAME32k 0.64", ConnectionType: v086.ConnectionGood,
	}}}, v086.ShiftJIS)
	frames, err := v086.DecodeBundle(roundTrip(t, c, info), -1, v086.ShiftJIS)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if _, ok := frames[0].Message.(v086.ServerAck); !ok {
		t.Fatalf("reply = %#v, want ServerAck", frames[0].Message)
	}
}

func TestServerFullRepliesToo(t *testing.T) {
	l, _ := startListener(t, 1)
	a := dial(t, l)
	roundTrip(t, a, v086.Hello(v086.ProtocolVersion))

	b := dial(t, l)
	if got := string(roundTrip(t, b, v086.Hello(v086.ProtocolVersion))); got != string(v086.TooManyUsers()) {
		t.Fatalf("reply = %q, want TOO", got)
	}
}

func TestUnknownSenderDropped(t *testing.T) {
	l, srv := startListener(t, 10)
	c := dial(t, l)
	before := metricUnknownSender.Value()
	if _, err := c.Write(v086.EncodeBundle([]v086.Frame{{Number: 0, Message: v086.ClientAck{}}}, v086.ShiftJIS)); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for metricUnknownSender.Value() == before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if metricUnknownSender.Value() == before {
		t.Fatalf("unknown sender not counted")
	}
	if srv.UserCount() != 0 {
		t.Fatalf("UserCount() = %d, want 0", srv.UserCount())
	}
}
