package devtools

// OverflowPolicy controls what happens when the backlog is full.
type OverflowPolicy uint8

const (
	// DropOldest discards the oldest buffered message to keep the newest.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the message being added.
	DropNewest
)

func (p OverflowPolicy) String() string {
	if p == DropNewest {
		return "drop_newest"
	}
	return "drop_oldest"
}

// DefaultBacklogSize bounds the messages kept while no debugger is connected.
const DefaultBacklogSize = 1000

// backlog is a bounded FIFO of serialised messages. It is not safe for
// concurrent use; the Devtools mutex guards it.
type backlog struct {
	items   [][]byte
	size    int
	policy  OverflowPolicy
	dropped int
}

func newBacklog(size int, policy OverflowPolicy) *backlog {
	if size <= 0 {
		size = DefaultBacklogSize
	}
	return &backlog{size: size, policy: policy}
}

// push appends msg and reports whether a message was dropped to respect the bound.
func (b *backlog) push(msg []byte) bool {
	if len(b.items) < b.size {
		b.items = append(b.items, msg)
		return false
	}
	b.dropped++
	if b.policy == DropNewest {
		return true
	}
	copy(b.items, b.items[1:])
	b.items[len(b.items)-1] = msg
	return true
}

// requeue puts msgs back in front of the buffered messages, in order, and trims
// the result to the bound according to the policy.
func (b *backlog) requeue(msgs [][]byte) {
	items := make([][]byte, 0, len(msgs)+len(b.items))
	items = append(items, msgs...)
	items = append(items, b.items...)
	if extra := len(items) - b.size; extra > 0 {
		b.dropped += extra
		if b.policy == DropNewest {
			items = items[:b.size]
		} else {
			items = items[extra:]
		}
	}
	b.items = items
}

// drain returns the buffered messages in insertion order and empties the backlog.
func (b *backlog) drain() [][]byte {
	out := b.items
	b.items = nil
	b.dropped = 0
	return out
}

func (b *backlog) len() int {
	return len(b.items)
}
