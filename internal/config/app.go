package config

import "fmt"

// AppConfig is everything relay-server reads from the environment.
type AppConfig struct {
	Relay RelayConfig
	Log   LogConfig
}

func LoadApp() (AppConfig, error) {
	var (
		cfg AppConfig
		err error
	)
	if cfg.Log, err = LoadLog(); err != nil {
		return AppConfig{}, fmt.Errorf("log config: %w", err)
	}
	if cfg.Relay, err = LoadRelay(); err != nil {
		return AppConfig{}, fmt.Errorf("relay config: %w", err)
	}
	return cfg, nil
}
