package resolver

// EventKind identifies a resolver notification.
type EventKind int

const (
	// EventLoaded is published after a successful Load.
	EventLoaded EventKind = iota + 1
	// EventError is published when Load fails and the previous tree is restored.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners synchronously, before Load returns.
type Event struct {
	Kind    EventKind
	Err     error
	Sources []Source
}

// Listener receives resolver events.
type Listener func(Event)

func (r *Resolver) publish(ev Event) {
	for _, l := range r.listeners {
		l(ev)
	}
}

// Subscribe registers a listener for load events.
func (r *Resolver) Subscribe(l Listener) {
	if l == nil {
		return
	}
	r.listeners = append(r.listeners, l)
}
