package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type RelayConfig struct {
	UDPAddr     string `env:"UDP_ADDR" envDefault:":27888"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`
	ServerName  string `env:"SERVER_NAME" envDefault:"kaillera-relay"`
	Charset     string `env:"CHARSET" envDefault:"shift_jis"`

	MaxPingMS                int           `env:"MAX_PING" envDefault:"1000"`
	MaxUsers                 int           `env:"MAX_USERS" envDefault:"100"`
	MaxGames                 int           `env:"MAX_GAMES" envDefault:"50"`
	GameBufferSize           int           `env:"GAME_BUFFER_SIZE" envDefault:"4096"`
	AllowSinglePlayer        bool          `env:"ALLOW_SINGLE_PLAYER" envDefault:"true"`
	AllowMultipleConnections bool          `env:"ALLOW_MULTIPLE_CONNECTIONS" envDefault:"false"`
	AllowedConnectionTypes   []int         `env:"ALLOWED_CONNECTION_TYPES" envSeparator:"," envDefault:"1,2,3,4,5,6"`
	KeepAliveTimeout         time.Duration `env:"KEEPALIVE_TIMEOUT" envDefault:"190s"`
	IdleTimeout              time.Duration `env:"IDLE_TIMEOUT" envDefault:"1h"`
	ChatFloodTime            time.Duration `env:"CHAT_FLOOD_TIME" envDefault:"2s"`
	CreateGameFloodTime      time.Duration `env:"CREATE_GAME_FLOOD_TIME" envDefault:"5s"`
	MaxUserNameLength        int           `env:"MAX_USER_NAME_LENGTH" envDefault:"31"`
	MaxClientNameLength      int           `env:"MAX_CLIENT_NAME_LENGTH" envDefault:"127"`
	MaxChatLength            int           `env:"MAX_CHAT_LENGTH" envDefault:"150"`
	MaxGameNameLength        int           `env:"MAX_GAME_NAME_LENGTH" envDefault:"127"`
	MaxQuitMessageLength     int           `env:"MAX_QUIT_MESSAGE_LENGTH" envDefault:"100"`
	LagstatWindow            time.Duration `env:"LAGSTAT_WINDOW" envDefault:"60s"`
	SessionQueueSize         int           `env:"SESSION_QUEUE_SIZE" envDefault:"256"`
	AutoFireSensitivity      int           `env:"AUTOFIRE_SENSITIVITY" envDefault:"0"`
	GameLogDir               string        `env:"GAMELOG_DIR"`
	// Games started with more than BusyUserCount users online hide lobby
	// activity from their players. Zero disables it.
	BusyUserCount int `env:"BUSY_USER_COUNT" envDefault:"60"`

	LoginMessages []string      `env:"LOGIN_MESSAGES" envSeparator:"|"`
	AdminAddrs    []string      `env:"ADMIN_ADDRS" envSeparator:","`
	BannedAddrs   []string      `env:"BANNED_ADDRS" envSeparator:","`
	SilencedAddrs []string      `env:"SILENCED_ADDRS" envSeparator:","`
	AccessRefresh time.Duration `env:"ACCESS_REFRESH" envDefault:"30s"`

	// PushTargets is a JSON list of lobby webhook targets. PushTargetsFile
	// takes precedence when set.
	PushTargets     string        `env:"PUSH_TARGETS"`
	PushTargetsFile string        `env:"PUSH_TARGETS_FILE"`
	PushWorkers     int           `env:"PUSH_WORKERS" envDefault:"2"`
	PushRetryMax    int           `env:"PUSH_RETRY_MAX" envDefault:"3"`
	PushRetryBase   time.Duration `env:"PUSH_RETRY_BASE" envDefault:"500ms"`

	// Public listing on the master servers. ServerAddress is the address
	// clients connect to; empty lets the master use the request's source.
	TouchKaillera      bool          `env:"TOUCH_KAILLERA" envDefault:"false"`
	TouchEmulinker     bool          `env:"TOUCH_EMULINKER" envDefault:"false"`
	ServerAddress      string        `env:"SERVER_ADDRESS"`
	ServerLocation     string        `env:"SERVER_LOCATION" envDefault:"Unknown"`
	ServerWebsite      string        `env:"SERVER_WEBSITE"`
	MasterInterval     time.Duration `env:"MASTER_INTERVAL" envDefault:"1m"`
	KailleraMasterURL  string        `env:"KAILLERA_MASTER_URL" envDefault:"http://www.kaillera.com/touch_server.php"`
	EmulinkerMasterURL string        `env:"EMULINKER_MASTER_URL" envDefault:"http://kaillerareborn.2manygames.fr/touch_list.php"`
}

func (c RelayConfig) MaxPing() time.Duration {
	return time.Duration(c.MaxPingMS) * time.Millisecond
}

func LoadRelay() (RelayConfig, error) {
	var cfg RelayConfig
	err := env.Parse(&cfg)
	return cfg, err
}
