package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// Configuration file changed on disk. Data: *ConfigEvent
	EVENT_CODE_CONFIG_RELOADED EventCode = 0x09
	// A watched shader binary changed on disk. Data: *AssetEvent
	EVENT_CODE_SHADER_CHANGED EventCode = 0x0A

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type ConfigEvent struct {
	Path    string
	Payload interface{}
}

type AssetEvent struct {
	Path string
}

type FnOnEvent func(context EventContext)

// EventBus dispatches events to registered listeners. Fire is synchronous and
// must be called from the main loop; Post is safe from any goroutine and the
// event is delivered on the next Drain.
type EventBus struct {
	mu        sync.Mutex
	listeners map[EventCode][]FnOnEvent
	pending   chan EventContext

	// Events posted while the backlog was full, latest per key, in arrival order.
	overflow map[overflowKey]EventContext
	order    []overflowKey
}

// overflowKey identifies events that replace each other once the backlog is full.
type overflowKey struct {
	code EventCode
	path string
}

func keyOf(context EventContext) overflowKey {
	k := overflowKey{code: context.Type}
	switch d := context.Data.(type) {
	case *AssetEvent:
		k.path = d.Path
	case *ConfigEvent:
		k.path = d.Path
	}
	return k
}

func NewEventBus(backlog int) *EventBus {
	return &EventBus{
		listeners: make(map[EventCode][]FnOnEvent),
		pending:   make(chan EventContext, backlog),
		overflow:  make(map[overflowKey]EventContext),
	}
}

func (b *EventBus) Register(code EventCode, fn FnOnEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[code] = append(b.listeners[code], fn)
}

func (b *EventBus) Fire(context EventContext) {
	b.mu.Lock()
	fns := append([]FnOnEvent(nil), b.listeners[context.Type]...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(context)
	}
}

// Post queues the event. Once the backlog is full, events with the same code
// and path coalesce and only the latest one is delivered.
func (b *EventBus) Post(context EventContext) {
	select {
	case b.pending <- context:
		return
	default:
	}

	k := keyOf(context)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.overflow[k]; ok {
		LogDebug("event backlog full, event %d replaces an earlier one", context.Type)
	} else {
		LogWarn("event backlog full, holding event %d until the next drain", context.Type)
		b.order = append(b.order, k)
	}
	b.overflow[k] = context
}

// Drain delivers every queued event and returns how many were delivered.
func (b *EventBus) Drain() int {
	n := 0
	for {
		select {
		case ev := <-b.pending:
			b.Fire(ev)
			n++
			continue
		default:
		}

		b.mu.Lock()
		held := make([]EventContext, 0, len(b.order))
		for _, k := range b.order {
			held = append(held, b.overflow[k])
		}
		b.order = nil
		clear(b.overflow)
		b.mu.Unlock()

		if len(held) == 0 {
			return n
		}
		for _, ev := range held {
			b.Fire(ev)
			n++
		}
	}
}
