package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"kaillera-relay/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// teed into a size-limited file next to stdout.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	var output io.Writer = console
	var raw io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := openRotatingFile(cfg.File, cfg.MaxMB, cfg.Keep)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.File).Msg("open log file failed; logging to stdout only")
		} else {
			output = zerolog.MultiLevelWriter(console, fw)
			raw = io.MultiWriter(os.Stdout, fw)
		}
	}

	zerolog.SetGlobalLevel(level)
	lc := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		lc = lc.Str("service", cfg.Service)
	}
	logger := lc.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	writerMu.Lock()
	writer = raw
	writerMu.Unlock()
}

// Writer returns the unformatted sink used by Init, for libraries that bring
// their own encoder (httplog's slog handler).
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}
