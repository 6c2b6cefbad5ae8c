package session

// Notifier receives controller events. Implementations must deliver them
// to the presentation layer in the order Notify is called.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ev Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

type multiNotifier []Notifier

func (m multiNotifier) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}

// Notifiers fans events out to every non-nil notifier, in argument order.
func Notifiers(ns ...Notifier) Notifier {
	var out multiNotifier
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Queue is a FIFO Notifier backed by a channel. Notify blocks once the
// buffer is full, so the consumer must keep draining Events.
type Queue struct {
	ch chan Event
}

// NewQueue creates a queue holding up to size undelivered events.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Event, size)}
}

func (q *Queue) Notify(ev Event) { q.ch <- ev }

// Events is the consumer side of the queue.
func (q *Queue) Events() <-chan Event { return q.ch }
