package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusDispatchOrder(t *testing.T) {
	bus := NewEventBus()
	var got []string
	bus.Register(EVENT_CODE_RESIZED, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		got = append(got, "first")
		return data.U32[0] == 0
	})
	bus.Register(EVENT_CODE_RESIZED, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		got = append(got, "second")
		return true
	})

	bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{U32: [4]uint32{640, 480}})
	assert.Empty(t, got, "nothing runs before Dispatch")
	assert.Equal(t, 1, bus.Dispatch())
	assert.Equal(t, []string{"first", "second"}, got)

	got = nil
	bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{})
	bus.Dispatch()
	assert.Equal(t, []string{"first"}, got, "a handled event stops propagating")

	bus.Shutdown()
	bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{})
	bus.Dispatch()
	assert.Equal(t, []string{"first"}, got)
}

func TestEventBusFireFromGoroutines(t *testing.T) {
	bus := NewEventBus()
	paths := map[string]bool{}
	bus.Register(EVENT_CODE_TEXTURE_CHANGED, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		paths[data.Path] = true
		return true
	})

	var wg sync.WaitGroup
	for _, p := range []string{"a.png", "b.png", "c.png"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			bus.Fire(EVENT_CODE_TEXTURE_CHANGED, nil, EventContext{Path: p})
		}(p)
	}
	wg.Wait()
	assert.Equal(t, 3, bus.Dispatch())
	assert.Len(t, paths, 3)
	assert.Equal(t, 0, bus.Dispatch())
}
