package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"kaillera-relay/internal/store"
	"kaillera-relay/internal/testutil"
)

func TestGameRecordsRoundTrip(t *testing.T) {
	st := testutil.OpenStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	id, err := st.InsertGameRecord(ctx, store.GameRecord{
		GameID:            7,
		RomName:           "Street Fighter II",
		ClientType:        "MAME32k 0.64",
		OwnerName:         "ryu",
		NumPlayers:        2,
		HighestFrameDelay: 3,
		Players:           json.RawMessage(`[{"name":"ryu"},{"name":"ken"}]`),
		StartedAt:         started,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := st.GetGameRecord(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RomName != "Street Fighter II" || got.NumPlayers != 2 || !got.StartedAt.Equal(started) {
		t.Fatalf("record = %+v", got)
	}

	list, err := st.ListGameRecords(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("list = %+v, want one record %s", list, id)
	}
	if _, err := st.GetGameRecord(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestNewIDIsTimeOrdered(t *testing.T) {
	a := store.NewIDAt(time.Unix(100, 0))
	b := store.NewIDAt(time.Unix(200, 0))
	if len(a) != 26 || a >= b {
		t.Fatalf("ids %q %q not ordered", a, b)
	}
}
