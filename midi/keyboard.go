package midi

import (
	"fmt"

	"overtone/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController reads notes and pitch bends from a MIDI input port
type KeyboardController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	events chan InputEvent
}

// NewKeyboardController starts listening on inPort
func NewKeyboardController(id string, inPort drivers.In) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:     id,
		inPort: inPort,
		events: make(chan InputEvent, 256),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, kb.handle)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

func (kb *KeyboardController) handle(msg gomidi.Message, timestampms int32) {
	evt, ok := ParseInput(msg, timestampms)
	if !ok {
		return
	}
	select {
	case kb.events <- evt:
	default:
		debug.Log("device", "input %s: queue full, dropped %s", kb.id, msg)
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Events() <-chan InputEvent {
	return kb.events
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.events)
	return nil
}
