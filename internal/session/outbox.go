package session

import "kaillera-relay/internal/v086"

const (
	// bundleSize is how many recent messages ride along with each new one.
	bundleSize = 5
	outboxSize = v086.MaxBundleMessages
)

// outbox numbers outbound messages and keeps the most recent ones for
// redundant sends and resends.
type outbox struct {
	next   uint32
	frames [outboxSize]v086.Frame
	head   int // index of the newest frame
	count  int
}

func (o *outbox) add(m v086.Message) v086.Frame {
	f := v086.Frame{Number: uint16(o.next), Message: m}
	o.next++
	if o.next > 0xFFFF {
		o.next = 0
	}
	o.head = (o.head + 1) % outboxSize
	o.frames[o.head] = f
	if o.count < outboxSize {
		o.count++
	}
	return f
}

// recent returns up to n frames, newest first.
func (o *outbox) recent(n int) []v086.Frame {
	n = min(n, o.count)
	out := make([]v086.Frame, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, o.frames[(o.head-i+outboxSize)%outboxSize])
	}
	return out
}
