package game

// ReadStatus is the outcome of reading one action from a queue.
type ReadStatus int

const (
	Ready ReadStatus = iota
	NotYetAvailable
	Desynced
)

func (s ReadStatus) String() string {
	switch s {
	case Ready:
		return "ready"
	case NotYetAvailable:
		return "not_yet_available"
	case Desynced:
		return "desynced"
	}
	return "unknown"
}

// ActionQueue holds one player's submitted input as a ring buffer with a
// separate read head for every player in the game. It is not safe for
// concurrent use; the owning Game serializes access.
type ActionQueue struct {
	PlayerNumber int
	UserID       uint16
	Name         string

	buf    []byte
	tail   int64
	heads  []int64
	synced bool
	// lastTimeout is the last timeout number handled for this queue. Reset by new input.
	lastTimeout int
}

func NewActionQueue(playerNumber, numPlayers, capacity int) *ActionQueue {
	return &ActionQueue{
		PlayerNumber: playerNumber,
		buf:          make([]byte, capacity),
		heads:        make([]int64, numPlayers),
	}
}

func (q *ActionQueue) Synced() bool { return q.synced }

func (q *ActionQueue) MarkSynced() {
	q.synced = true
	q.tail = 0
	for i := range q.heads {
		q.heads[i] = 0
	}
	q.lastTimeout = 0
}

func (q *ActionQueue) MarkDesynced() { q.synced = false }

// Add appends actions at the tail. Input for a desynced queue is discarded.
// A reader that falls more than a full buffer behind loses its oldest bytes.
func (q *ActionQueue) Add(actions []byte) {
	if !q.synced || len(q.buf) == 0 {
		return
	}
	for len(actions) > 0 {
		pos := int(q.tail % int64(len(q.buf)))
		n := copy(q.buf[pos:], actions)
		actions = actions[n:]
		q.tail += int64(n)
	}
	floor := q.tail - int64(len(q.buf))
	for i, h := range q.heads {
		if h < floor {
			q.heads[i] = floor
		}
	}
	q.lastTimeout = 0
}

// Available is the number of unread bytes for reader.
func (q *ActionQueue) Available(reader int) int {
	if reader < 0 || reader >= len(q.heads) {
		return 0
	}
	return int(q.tail - q.heads[reader])
}

// Get fills out with reader's next len(out) bytes. A desynced queue yields
// zeros. The head only moves on Ready.
func (q *ActionQueue) Get(reader int, out []byte) ReadStatus {
	if !q.synced {
		for i := range out {
			out[i] = 0
		}
		return Desynced
	}
	if q.Available(reader) < len(out) {
		return NotYetAvailable
	}
	head := q.heads[reader]
	for n := 0; n < len(out); {
		pos := int(head % int64(len(q.buf)))
		c := copy(out[n:], q.buf[pos:])
		n += c
		head += int64(c)
	}
	q.heads[reader] = head
	return Ready
}
