package midi

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"overtone/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when inputs connect/disconnect or the output list changes
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
	Outputs    []string // DevicePortsChanged only
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
	DevicePortsChanged
)

// DeviceManager handles hot-plug detection of MIDI inputs and outputs
type DeviceManager struct {
	inputPrefix string

	controllers map[string]Controller
	outputs     []string
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
}

// NewDeviceManager creates a device manager that opens every input whose
// name starts with inputPrefix (case-insensitive). An empty prefix opens all
// inputs except loopback "through" ports.
func NewDeviceManager(inputPrefix string) *DeviceManager {
	return &DeviceManager{
		inputPrefix: strings.ToLower(inputPrefix),
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
	}
}

// Events returns a channel of device events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected inputs
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

// ListPorts queries the driver with a timeout (CoreMIDI can hang)
func ListPorts(timeout time.Duration) (ins []drivers.In, outs []drivers.Out, ok bool) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, true
	case <-time.After(timeout):
		return nil, nil, false
	}
}

// FindOutPort returns the output port called name
func FindOutPort(name string) (drivers.Out, bool) {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == name {
			return port, true
		}
	}
	return nil, false
}

func (dm *DeviceManager) wantInput(name string) bool {
	name = strings.ToLower(name)
	if dm.inputPrefix == "" {
		return !strings.Contains(name, "through")
	}
	return strings.HasPrefix(name, dm.inputPrefix)
}

func (dm *DeviceManager) scan() {
	inPorts, outPorts, ok := ListPorts(3 * time.Second)
	if !ok {
		// CoreMIDI is hung - skip this scan
		debug.Log("device", "port scan timed out")
		return
	}

	outNames := make([]string, 0, len(outPorts))
	for _, op := range outPorts {
		outNames = append(outNames, op.String())
	}
	dm.mu.Lock()
	changed := !slices.Equal(outNames, dm.outputs)
	dm.outputs = outNames
	dm.mu.Unlock()
	if changed {
		dm.events <- DeviceEvent{Type: DevicePortsChanged, Outputs: slices.Clone(outNames)}
	}

	// Build map of what we see now
	seenIDs := make(map[string]bool)

	for _, inPort := range inPorts {
		id := inPort.String()
		if !dm.wantInput(id) {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboardController(id, inPort)
		if err != nil {
			debug.Log("device", "%v", err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = kb
		dm.mu.Unlock()

		debug.Log("device", "input connected: %s", id)
		dm.events <- DeviceEvent{
			Type:       DeviceConnected,
			Controller: kb,
			ID:         id,
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("device", "input disconnected: %s", id)
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}
