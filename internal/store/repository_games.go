package store

import (
	"context"
	"fmt"
)

func (s *Store) InsertGameRecord(ctx context.Context, rec GameRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = NewIDAt(rec.StartedAt)
	}
	players := rec.Players
	if len(players) == 0 {
		players = []byte("[]")
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO game_records (id, game_id, rom_name, client_type, owner_name, num_players, highest_frame_delay, players, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.GameID, rec.RomName, rec.ClientType, rec.OwnerName, rec.NumPlayers, rec.HighestFrameDelay, players, rec.StartedAt)
	if err != nil {
		return "", fmt.Errorf("insert game record: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) GetGameRecord(ctx context.Context, id string) (GameRecord, error) {
	var rec GameRecord
	err := s.Pool.QueryRow(ctx, `
SELECT id, game_id, rom_name, client_type, owner_name, num_players, highest_frame_delay, players, started_at
FROM game_records WHERE id = $1`, id).Scan(
		&rec.ID, &rec.GameID, &rec.RomName, &rec.ClientType, &rec.OwnerName, &rec.NumPlayers, &rec.HighestFrameDelay, &rec.Players, &rec.StartedAt)
	if err != nil {
		return GameRecord{}, notFound(err)
	}
	return rec, nil
}

// ListGameRecords returns the most recently started games first.
func (s *Store) ListGameRecords(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
SELECT id, game_id, rom_name, client_type, owner_name, num_players, highest_frame_delay, players, started_at
FROM game_records ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GameRecord
	for rows.Next() {
		var rec GameRecord
		if err := rows.Scan(&rec.ID, &rec.GameID, &rec.RomName, &rec.ClientType, &rec.OwnerName, &rec.NumPlayers, &rec.HighestFrameDelay, &rec.Players, &rec.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
