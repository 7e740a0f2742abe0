package config

import "github.com/caarlos0/env/v11"

// LogConfig is shared by the relay and the bot. Service tags every line.
type LogConfig struct {
	Service     string `env:"LOG_SERVICE" envDefault:"kaillera-relay"`
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	Keep        int    `env:"LOG_KEEP" envDefault:"3"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return LogConfig{}, err
	}
	if cfg.Keep < 1 {
		cfg.Keep = 1
	}
	return cfg, nil
}
