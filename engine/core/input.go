package core

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN   KeyCode = 0x00
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_A         KeyCode = 0x41
	KEY_C         KeyCode = 0x43
	KEY_D         KeyCode = 0x44
	KEY_S         KeyCode = 0x53
	KEY_V         KeyCode = 0x56
	KEY_W         KeyCode = 0x57

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Input tracks the keyboard state of the current and previous frames.
type Input struct {
	current  [KEYS_MAX_KEYS]bool
	previous [KEYS_MAX_KEYS]bool
	bus      *EventBus
}

func NewInput(bus *EventBus) *Input {
	return &Input{bus: bus}
}

// Update copies the current state to the previous one. Call it last in a frame.
func (in *Input) Update() {
	in.previous = in.current
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.current[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.previous[key]
}

// ProcessKey fires a pressed/released event when the state changes.
func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	if key >= KEYS_MAX_KEYS || in.current[key] == pressed {
		return
	}
	in.current[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	if in.bus != nil {
		in.bus.Fire(EventContext{
			Type: code,
			Data: &KeyEvent{KeyCode: key},
		})
	}
}
