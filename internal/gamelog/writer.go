package gamelog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"

	"kaillera-relay/internal/game"
	"kaillera-relay/internal/store"
)

// Writer streams records for one game into a zstd file. It implements
// game.Recorder; write errors are kept and returned by Close.
type Writer struct {
	mu     sync.Mutex
	gameID uint16
	path   string
	file   *os.File
	enc    *zstd.Encoder
	buf    []byte
	err    error
	closed bool
}

// Create opens <dir>/game-<id>-<ulid>.bin.zst.
func Create(dir string, gameID uint16, now time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("game log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("game-%d-%s.bin.zst", gameID, store.NewIDAt(now)))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create game log: %w", err)
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Writer{gameID: gameID, path: path, file: file, enc: enc}, nil
}

// NewRecorderFunc returns a game.Options.NewRecorder that writes into dir.
func NewRecorderFunc(dir string) func(gameID uint16) (game.Recorder, error) {
	return func(gameID uint16) (game.Recorder, error) {
		w, err := Create(dir, gameID, time.Now())
		if err != nil {
			return nil, err
		}
		log.Info().Uint16("game_id", gameID).Str("path", w.path).Msg("game log opened")
		return w, nil
	}
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) write(r Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.err != nil {
		return
	}
	body := AppendRecord(w.buf[:0], r)
	frame := protowire.AppendVarint(nil, uint64(len(body)))
	if _, err := w.enc.Write(append(frame, body...)); err != nil {
		w.err = err
		log.Warn().Err(err).Uint16("game_id", w.gameID).Msg("game log write failed")
	}
	w.buf = body
}

func players(infos []game.PlayerInfo) []Player {
	out := make([]Player, 0, len(infos))
	for _, p := range infos {
		out = append(out, Player{
			UserID:     p.UserID,
			Name:       p.Name,
			Number:     p.Number,
			FrameDelay: p.FrameDelay,
			PingMS:     p.PingMS,
			LagMS:      p.LagMS,
		})
	}
	return out
}

func (w *Writer) Start(at time.Time, ps []game.PlayerInfo) {
	w.write(Record{Kind: KindStart, At: at, GameID: w.gameID, Players: players(ps)})
}

func (w *Writer) Received(at time.Time, playerNumber int) {
	w.write(Record{Kind: KindReceived, At: at, PlayerNumber: playerNumber})
}

func (w *Writer) FanOut(at time.Time) {
	w.write(Record{Kind: KindFanOut, At: at})
}

func (w *Writer) Lagstat(at time.Time, window, gameLag time.Duration, ps []game.PlayerInfo) {
	w.write(Record{Kind: KindLagstat, At: at, Window: window, GameLag: gameLag, Players: players(ps)})
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true
	if err := w.enc.Close(); err != nil && w.err == nil {
		w.err = err
	}
	if err := w.file.Close(); err != nil && w.err == nil {
		w.err = err
	}
	return w.err
}

// ReadFile decodes every record of a game log.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	var out []Record
	for {
		size, err := binary.ReadUvarint(br)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%w: length: %v", ErrRecordFormat, err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(br, body); err != nil {
			return out, fmt.Errorf("%w: body: %v", ErrRecordFormat, err)
		}
		rec, err := ParseRecord(body)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
