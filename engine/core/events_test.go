package core

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireIsSynchronous(t *testing.T) {
	bus := NewEventBus(4)
	var got []EventCode
	bus.Register(EVENT_CODE_RESIZED, func(ctx EventContext) {
		got = append(got, ctx.Type)
		ev, ok := ctx.Data.(*SystemEvent)
		require.True(t, ok)
		assert.Equal(t, uint32(640), ev.WindowWidth)
	})
	bus.Register(EVENT_CODE_RESIZED, func(ctx EventContext) { got = append(got, ctx.Type) })

	bus.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 640, WindowHeight: 480}})
	assert.Equal(t, []EventCode{EVENT_CODE_RESIZED, EVENT_CODE_RESIZED}, got)

	bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	assert.Len(t, got, 2, "no listener for quit")
}

func TestPostDeliversOnDrain(t *testing.T) {
	bus := NewEventBus(16)
	var paths []string
	bus.Register(EVENT_CODE_SHADER_CHANGED, func(ctx EventContext) {
		paths = append(paths, ctx.Data.(*AssetEvent).Path)
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Post(EventContext{Type: EVENT_CODE_SHADER_CHANGED, Data: &AssetEvent{Path: "shader.vert.spv"}})
		}()
	}
	wg.Wait()
	assert.Empty(t, paths, "nothing delivered before Drain")

	assert.Equal(t, 4, bus.Drain())
	assert.Len(t, paths, 4)
	assert.Zero(t, bus.Drain())
}

func TestPostCoalescesWhenBacklogIsFull(t *testing.T) {
	var out bytes.Buffer
	SetLogOutput(&out)
	defer SetLogOutput(discard{})

	bus := NewEventBus(1)
	var configs [][]byte
	var shaders []string
	quits := 0
	bus.Register(EVENT_CODE_CONFIG_RELOADED, func(ctx EventContext) {
		configs = append(configs, ctx.Data.(*ConfigEvent).Payload.([]byte))
	})
	bus.Register(EVENT_CODE_SHADER_CHANGED, func(ctx EventContext) {
		shaders = append(shaders, ctx.Data.(*AssetEvent).Path)
	})
	bus.Register(EVENT_CODE_APPLICATION_QUIT, func(EventContext) { quits++ })

	config := func(payload string) EventContext {
		return EventContext{Type: EVENT_CODE_CONFIG_RELOADED, Data: &ConfigEvent{Path: "config.toml", Payload: []byte(payload)}}
	}
	shader := func(path string) EventContext {
		return EventContext{Type: EVENT_CODE_SHADER_CHANGED, Data: &AssetEvent{Path: path}}
	}

	bus.Post(config("a"))
	bus.Post(config("b"))
	bus.Post(shader("shader.vert.spv"))
	bus.Post(config("c"))
	bus.Post(shader("shader.frag.spv"))
	bus.Post(shader("shader.vert.spv"))
	bus.Post(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	assert.Contains(t, out.String(), "event backlog full")

	assert.Equal(t, 5, bus.Drain())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("c")}, configs, "the latest configuration wins")
	assert.Equal(t, []string{"shader.vert.spv", "shader.frag.spv"}, shaders)
	assert.Equal(t, 1, quits)
	assert.Zero(t, bus.Drain())
}

func TestInputFiresOnTransitions(t *testing.T) {
	bus := NewEventBus(1)
	var pressed, released []KeyCode
	bus.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) { pressed = append(pressed, ctx.Data.(*KeyEvent).KeyCode) })
	bus.Register(EVENT_CODE_KEY_RELEASED, func(ctx EventContext) { released = append(released, ctx.Data.(*KeyEvent).KeyCode) })

	in := NewInput(bus)
	in.ProcessKey(KEY_SPACE, true)
	in.ProcessKey(KEY_SPACE, true)
	assert.True(t, in.IsKeyDown(KEY_SPACE))
	assert.False(t, in.WasKeyDown(KEY_SPACE))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_SPACE))
	in.ProcessKey(KEY_SPACE, false)
	assert.False(t, in.IsKeyDown(KEY_SPACE))

	in.ProcessKey(KEYS_MAX_KEYS, true)
	assert.False(t, in.IsKeyDown(KEYS_MAX_KEYS))

	assert.Equal(t, []KeyCode{KEY_SPACE}, pressed)
	assert.Equal(t, []KeyCode{KEY_SPACE}, released)
}

func TestInputWithoutBus(t *testing.T) {
	in := NewInput(nil)
	in.ProcessKey(KEY_A, true)
	assert.True(t, in.IsKeyDown(KEY_A))
}
