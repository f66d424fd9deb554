package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u32 width = data.U32[0];
	 * u32 height = data.U32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A watched texture file changed on disk.
	/* Context usage:
	 * string path = data.Path;
	 */
	EVENT_CODE_TEXTURE_CHANGED SystemEventCode = 0x10

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	U32  [4]uint32
	Path string
}

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, data EventContext) bool

type queuedEvent struct {
	code   SystemEventCode
	sender interface{}
	data   EventContext
}

// EventBus queues events from any goroutine and dispatches them on the
// goroutine that calls Dispatch, which is the render thread.
type EventBus struct {
	mu         sync.Mutex
	registered map[SystemEventCode][]FnOnEvent
	queue      []queuedEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code.
 * Callbacks are invoked in registration order.
 */
func (b *EventBus) Register(code SystemEventCode, onEvent FnOnEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered[code] = append(b.registered[code], onEvent)
}

// Fire queues an event. Safe to call from watcher goroutines and glfw callbacks.
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, data EventContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, queuedEvent{code: code, sender: sender, data: data})
}

/**
 * Dispatch delivers all queued events. If a handler returns TRUE, the event
 * is considered handled and is not passed on to any more listeners.
 * @returns the number of events delivered.
 */
func (b *EventBus) Dispatch() int {
	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, e := range pending {
		b.mu.Lock()
		callbacks := append([]FnOnEvent(nil), b.registered[e.code]...)
		b.mu.Unlock()
		for _, cb := range callbacks {
			if cb(e.code, e.sender, e.data) {
				break
			}
		}
	}
	return len(pending)
}

// Shutdown drops pending events and listeners.
func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
	b.registered = make(map[SystemEventCode][]FnOnEvent)
}
