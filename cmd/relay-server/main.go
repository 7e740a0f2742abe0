package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/eventfeed"
	"kaillera-relay/internal/gamelog"
	"kaillera-relay/internal/lobbypush"
	"kaillera-relay/internal/logging"
	"kaillera-relay/internal/masterlist"
	"kaillera-relay/internal/server"
	"kaillera-relay/internal/store"
	httptransport "kaillera-relay/internal/transport/http"
	"kaillera-relay/internal/transport/udp"
	"kaillera-relay/internal/v086"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	feedSize        = 1024
	janitorInterval = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	if err := run(cfg.Relay); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
}

func run(cfg config.RelayConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cs, err := v086.LookupCharset(cfg.Charset)
	if err != nil {
		return err
	}

	feed := eventfeed.New(feedSize)
	defer feed.Close()

	g, ctx := errgroup.WithContext(ctx)

	deps := server.Deps{Feed: feed, Access: server.NewStaticAccess(cfg)}
	var collectors server.MultiStats
	routerDeps := httptransport.RouterDeps{Feed: feed, AdminAPIKey: cfg.AdminAPIKey, Version: version}
	if cfg.PostgresDSN != "" {
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			return err
		}
		access := server.NewStoreAccess(st, deps.Access)
		if err := access.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial access rule load failed")
		}
		stats := server.NewStoreStats(st, 64)
		g.Go(func() error {
			access.Run(ctx, cfg.AccessRefresh)
			return nil
		})
		g.Go(func() error {
			stats.Run(ctx)
			return nil
		})
		deps.Access = access
		collectors = append(collectors, stats)
		routerDeps.Store = st
		routerDeps.Access = access
	} else {
		log.Info().Msg("no database configured, using static access lists")
	}
	if cfg.GameLogDir != "" {
		deps.NewRecorder = gamelog.NewRecorderFunc(cfg.GameLogDir)
	}

	var started *masterlist.StartedGames
	if cfg.TouchKaillera {
		started = &masterlist.StartedGames{}
		collectors = append(collectors, started)
	}
	if len(collectors) > 0 {
		deps.Stats = collectors
	}

	pushCfg, err := lobbypush.ConfigFromRelay(cfg)
	if err != nil {
		return err
	}
	if pushCfg.Enabled() {
		pusher := lobbypush.NewManager(pushCfg)
		g.Go(func() error {
			pusher.Run(ctx, feed)
			return nil
		})
	}

	srv := server.New(cfg, deps)
	routerDeps.Server = srv
	srv.StartJanitor(ctx, janitorInterval)

	ln, err := udp.Listen(cfg.UDPAddr, srv, udp.Options{Charset: cs, QueueSize: cfg.SessionQueueSize})
	if err != nil {
		return err
	}
	log.Info().
		Str("addr", ln.LocalAddr().String()).
		Str("server_name", cfg.ServerName).
		Str("charset", cs.Name()).
		Msg("udp listening")

	if updater := masterlist.NewUpdater(cfg, masterlist.InfoFromRelay(cfg, ln.Port(), version), srv, started); updater != nil {
		g.Go(func() error {
			updater.Run(ctx)
			return nil
		})
	}

	r := httptransport.NewRouter(routerDeps)
	httptransport.LogRoutes(r)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		return ln.Serve(ctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		srv.Shutdown("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
