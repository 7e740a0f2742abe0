package session

import (
	"testing"

	"kaillera-relay/internal/v086"
)

func TestOutboxNumbersAndWraps(t *testing.T) {
	var o outbox
	o.next = 0xFFFE
	a := o.add(v086.ServerAck{})
	b := o.add(v086.ServerAck{})
	c := o.add(v086.ServerAck{})
	if a.Number != 0xFFFE || b.Number != 0xFFFF || c.Number != 0 {
		t.Fatalf("numbers = %d %d %d, want 65534 65535 0", a.Number, b.Number, c.Number)
	}
}

func TestOutboxRecentNewestFirst(t *testing.T) {
	var o outbox
	for i := 0; i < 40; i++ {
		o.add(v086.KeepAlive{Value: uint8(i)})
	}
	got := o.recent(5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, f := range got {
		if want := uint16(39 - i); f.Number != want {
			t.Fatalf("recent[%d] = %d, want %d", i, f.Number, want)
		}
	}
	if all := o.recent(100); len(all) != outboxSize || all[outboxSize-1].Number != 8 {
		t.Fatalf("recent(100) = %d frames ending %d, want %d ending 8", len(all), all[len(all)-1].Number, outboxSize)
	}
}
