// Package masterlist keeps the relay listed on the public Kaillera and
// EmuLinker master servers.
package masterlist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/config"
	"kaillera-relay/internal/game"
	"kaillera-relay/internal/v086"
)

const requestTimeout = 5 * time.Second

// Lobby is the part of the server a listing describes.
type Lobby interface {
	UserCount() int
	Games(withPlayers bool) []game.Snapshot
}

// Info describes the server to the masters.
type Info struct {
	Name     string
	Address  string
	Location string
	Website  string
	Port     int
	MaxUsers int
	MaxGames int
	Version  string
}

func InfoFromRelay(cfg config.RelayConfig, port int, version string) Info {
	return Info{
		Name:     cfg.ServerName,
		Address:  cfg.ServerAddress,
		Location: cfg.ServerLocation,
		Website:  cfg.ServerWebsite,
		Port:     port,
		MaxUsers: cfg.MaxUsers,
		MaxGames: cfg.MaxGames,
		Version:  version,
	}
}

// StartedGames remembers the ROM of every game started since the last
// Kaillera touch. It is a game.StatsCollector.
type StartedGames struct {
	mu   sync.Mutex
	roms []string
}

func (s *StartedGames) MarkGameAsStarted(snap game.Snapshot) {
	s.mu.Lock()
	s.roms = append(s.roms, snap.RomName)
	s.mu.Unlock()
}

func (s *StartedGames) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.roms
	s.roms = nil
	return out
}

type Updater struct {
	info    Info
	lobby   Lobby
	started *StartedGames

	kailleraURL  string
	emulinkerURL string
	interval     time.Duration
	client       *http.Client
	// Failures are logged at most every six hours per master.
	warnLog zerolog.Logger
}

// NewUpdater returns nil when neither master is enabled.
func NewUpdater(cfg config.RelayConfig, info Info, lobby Lobby, started *StartedGames) *Updater {
	if !cfg.TouchKaillera && !cfg.TouchEmulinker {
		return nil
	}
	u := &Updater{
		info:     info,
		lobby:    lobby,
		started:  started,
		interval: cfg.MasterInterval,
		client:   &http.Client{Timeout: requestTimeout},
		warnLog:  log.Sample(&zerolog.BurstSampler{Burst: 1, Period: 6 * time.Hour}),
	}
	if u.interval <= 0 {
		u.interval = time.Minute
	}
	if cfg.TouchKaillera {
		u.kailleraURL = cfg.KailleraMasterURL
	}
	if cfg.TouchEmulinker {
		u.emulinkerURL = cfg.EmulinkerMasterURL
	}
	return u
}

// Run touches the masters once per interval, the first time one interval
// after start, until ctx is done.
func (u *Updater) Run(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	log.Info().
		Bool("kaillera", u.kailleraURL != "").
		Bool("emulinker", u.emulinkerURL != "").
		Dur("interval", u.interval).
		Msg("master list updates started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.Touch(ctx)
		}
	}
}

// Touch reports the current lobby to every enabled master.
func (u *Updater) Touch(ctx context.Context) {
	games := u.lobby.Games(false)
	var started []string
	if u.started != nil {
		started = u.started.drain()
	}
	if u.kailleraURL != "" {
		if req, err := u.kailleraRequest(games, started); err != nil {
			log.Error().Err(err).Str("master", "kaillera").Msg("build master touch")
		} else {
			u.send(ctx, "kaillera", req)
		}
	}
	if u.emulinkerURL != "" {
		if req, err := u.emulinkerRequest(games); err != nil {
			log.Error().Err(err).Str("master", "emulinker").Msg("build master touch")
		} else {
			u.send(ctx, "emulinker", req)
		}
	}
}

func (u *Updater) send(ctx context.Context, master string, req *http.Request) {
	resp, err := u.client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() == nil {
			u.warnLog.Warn().Err(err).Str("master", master).Msg("touch master failed")
		}
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		u.warnLog.Warn().Int("status", resp.StatusCode).Str("master", master).Msg("touch master failed")
		return
	}
	log.Debug().Str("master", master).Msg("touched master")
}

func (u *Updater) kailleraRequest(games []game.Snapshot, started []string) (*http.Request, error) {
	q := url.Values{}
	q.Set("servername", u.info.Name)
	q.Set("port", strconv.Itoa(u.info.Port))
	q.Set("nbusers", strconv.Itoa(u.lobby.UserCount()))
	q.Set("maxconn", strconv.Itoa(u.info.MaxUsers))
	// The Kaillera master drops entries whose version it does not recognise.
	q.Set("version", "elk")
	q.Set("nbgames", strconv.Itoa(len(games)))
	q.Set("location", u.info.Location)
	q.Set("ip", u.info.Address)
	q.Set("url", u.info.Website)
	req, err := newGet(u.kailleraURL, q)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Kaillera-games", joinFields(started))
	var wg strings.Builder
	for _, g := range waiting(games) {
		fmt.Fprintf(&wg, "%d|%s|%s|%s|%d|", g.ID, g.RomName, g.OwnerName, g.ClientType, g.NumPlayers)
	}
	req.Header.Set("Kaillera-wgames", wg.String())
	return req, nil
}

func (u *Updater) emulinkerRequest(games []game.Snapshot) (*http.Request, error) {
	q := url.Values{}
	q.Set("serverName", u.info.Name)
	q.Set("ipAddress", u.info.Address)
	q.Set("location", u.info.Location)
	q.Set("website", u.info.Website)
	q.Set("port", strconv.Itoa(u.info.Port))
	q.Set("numUsers", strconv.Itoa(u.lobby.UserCount()))
	q.Set("maxUsers", strconv.Itoa(u.info.MaxUsers))
	q.Set("numGames", strconv.Itoa(len(games)))
	q.Set("maxGames", strconv.Itoa(u.info.MaxGames))
	q.Set("version", u.info.Version)
	req, err := newGet(u.emulinkerURL, q)
	if err != nil {
		return nil, err
	}
	var wg strings.Builder
	for _, g := range waiting(games) {
		fmt.Fprintf(&wg, "%s|%s|%s|%d/%d|", g.RomName, g.OwnerName, g.ClientType, g.NumPlayers, g.MaxUsers)
	}
	req.Header.Set("Waiting-games", wg.String())
	return req, nil
}

func newGet(base string, q url.Values) (*http.Request, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("master url %q: %w", base, err)
	}
	u.RawQuery = q.Encode()
	return http.NewRequest(http.MethodGet, u.String(), nil)
}

func waiting(games []game.Snapshot) []game.Snapshot {
	out := games[:0:0]
	for _, g := range games {
		if g.Status == v086.GameWaiting {
			out = append(out, g)
		}
	}
	return out
}

func joinFields(fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f)
		b.WriteByte('|')
	}
	return b.String()
}
