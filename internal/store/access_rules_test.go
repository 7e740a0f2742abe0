package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"kaillera-relay/internal/store"
	"kaillera-relay/internal/testutil"
)

func TestAccessRulesListSkipsExpired(t *testing.T) {
	st := testutil.OpenStore(t)
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	ids := testutil.SeedAccessRules(t, st,
		store.AccessRule{Kind: store.RuleUser, Pattern: "10.0.0.*", AccessLevel: 4, Allow: true},
		store.AccessRule{Kind: store.RuleSilence, Pattern: "10.0.0.9", Allow: true, ExpiresAt: &past},
		store.AccessRule{Kind: store.RuleUser, Pattern: "192.168.*", AccessLevel: 0, ExpiresAt: &future},
	)
	admin, ban := ids[0], ids[2]

	rules, err := st.ListAccessRules(ctx, now)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if rules[0].ID != admin || rules[1].ID != ban {
		t.Fatalf("rule ids = %s,%s want %s,%s", rules[0].ID, rules[1].ID, admin, ban)
	}
	if rules[1].ExpiresAt == nil {
		t.Fatalf("expires_at not scanned")
	}

	if err := st.DeleteAccessRule(ctx, admin); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteAccessRule(ctx, admin); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete err = %v, want %v", err, store.ErrNotFound)
	}
}
