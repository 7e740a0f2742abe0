package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/logging"
	"kaillera-relay/internal/v086"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if _, set := os.LookupEnv("LOG_SERVICE"); !set {
		logCfg.Service = "relay-bot"
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil && !errors.Is(err, errKicked) {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

// handshake asks the public port for a session and returns the session address.
func handshake(conn *net.UDPConn, server *net.UDPAddr) (*net.UDPAddr, error) {
	if _, err := conn.WriteToUDP(v086.Hello(v086.ProtocolVersion), server); err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 64)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, fmt.Errorf("hello: %w", err)
	}
	port, err := v086.ParseHelloD00D(buf[:n])
	if err != nil {
		return nil, err
	}
	return &net.UDPAddr{IP: server.IP, Port: port, Zone: server.Zone}, nil
}

func run(ctx context.Context, cfg config.BotConfig) error {
	cs, err := v086.LookupCharset(cfg.Charset)
	if err != nil {
		return err
	}
	server, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stopClose()

	sessionAddr, err := handshake(conn, server)
	if err != nil {
		return err
	}
	log.Info().Str("session_addr", sessionAddr.String()).Str("name", cfg.Name).Msg("connected")

	c := newClient(cfg, cs, func(b []byte) error {
		_, err := conn.WriteToUDP(b, sessionAddr)
		return err
	}, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err := c.login(); err != nil {
		return err
	}
	defer func() {
		_ = c.send(v086.QuitRequest{Message: "bot leaving"})
	}()

	buf := make([]byte, 64*1024)
	lastSent := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			if c.loggedIn && time.Since(lastSent) >= cfg.KeepAlive {
				if err := c.send(v086.KeepAlive{}); err != nil {
					return err
				}
				lastSent = time.Now()
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := c.receive(buf[:n]); err != nil {
			return err
		}
		lastSent = time.Now()
	}
}
