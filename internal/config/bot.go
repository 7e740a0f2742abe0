package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	ServerAddr     string        `env:"BOT_SERVER_ADDR" envDefault:"127.0.0.1:27888"`
	Name           string        `env:"BOT_NAME" envDefault:"bot"`
	ClientType     string        `env:"BOT_CLIENT_TYPE" envDefault:"relay-bot"`
	ConnectionType int           `env:"BOT_CONNECTION_TYPE" envDefault:"1"`
	Charset        string        `env:"BOT_CHARSET" envDefault:"shift_jis"`
	Greeting       string        `env:"BOT_GREETING" envDefault:"hello from bot"`
	RomName        string        `env:"BOT_ROM_NAME"`
	JoinGameID     uint16        `env:"BOT_JOIN_GAME_ID" envDefault:"0"`
	InputSize      int           `env:"BOT_INPUT_SIZE" envDefault:"2"`
	KeepAlive      time.Duration `env:"BOT_KEEPALIVE" envDefault:"60s"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
