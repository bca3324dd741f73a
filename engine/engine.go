// Package engine owns the tone router, the allocator bank and the Piper and
// drives them from a single goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"overtone/alloc"
	"overtone/config"
	"overtone/debug"
	"overtone/midi"
	"overtone/piper"
	"overtone/router"
	"overtone/snap"
	"overtone/tuning"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ErrStopped is returned by Do once Run has returned
var ErrStopped = errors.New("engine stopped")

// PortOpener opens an output port by name
type PortOpener func(name string) (midi.SendFunc, error)

// OpenPort opens a hardware output through the registered gomidi driver
func OpenPort(name string) (midi.SendFunc, error) {
	port, ok := midi.FindOutPort(name)
	if !ok {
		return nil, fmt.Errorf("output %q not found", name)
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", name, err)
	}
	return send, nil
}

type heldInput struct {
	channel uint8
	note    uint8
}

// Engine wires input controllers to the router. All routing state is owned
// by the Run goroutine; other goroutines go through Do.
type Engine struct {
	cfg     *config.Config
	table   *tuning.Table
	keymap  *tuning.KeyMap
	snapper *snap.Snapper
	bank    *alloc.Bank
	piper   *piper.Piper
	router  *router.Router

	open    PortOpener
	senders map[string]midi.SendFunc
	outputs []string // output ports present on the system

	inputs    map[string]bool
	inputBend [midi.NumChannels]int16
	held      map[tuning.SourceKey]heldInput

	lastKey  tuning.SourceKey
	lastDown bool
	anyKey   bool

	events  chan midi.InputEvent
	cmds    chan func()
	stopped chan struct{}

	statusMu sync.RWMutex
	status   Status

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// New builds an engine from cfg. keymap is used in the direct receive mode.
// open may be nil for OpenPort.
func New(cfg *config.Config, keymap *tuning.KeyMap, open PortOpener) *Engine {
	if open == nil {
		open = OpenPort
	}
	if keymap == nil {
		keymap = tuning.DefaultKeyMap(cfg.TableOptions())
	}
	e := &Engine{
		cfg:        cfg,
		table:      tuning.NewTable(cfg.TableOptions()),
		keymap:     keymap,
		bank:       alloc.NewBank(),
		piper:      piper.New(cfg.Piper.Length),
		open:       open,
		senders:    make(map[string]midi.SendFunc),
		inputs:     make(map[string]bool),
		held:       make(map[tuning.SourceKey]heldInput),
		events:     make(chan midi.InputEvent, 256),
		cmds:       make(chan func()),
		stopped:    make(chan struct{}),
		UpdateChan: make(chan struct{}, 1),
	}
	e.router = router.New(keymap, e.table, synthLog{}, e.bank, e.piper)
	e.router.OnKey(func(key tuning.SourceKey, down bool) {
		e.lastKey, e.lastDown, e.anyKey = key, down, true
	})
	e.applyMode(cfg.Receive.Mode)
	e.publish()
	return e
}

// Run processes input events and commands until ctx is done. Every event is
// handled to completion before the next one starts.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.stopped)
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case fn := <-e.cmds:
			fn()
		case evt := <-e.events:
			e.handleInput(evt)
			e.publish()
		}
	}
}

// Do runs fn on the engine goroutine and waits for it. It must not be called
// from inside another Do.
func (e *Engine) Do(fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
		e.publish()
	}
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return ErrStopped
	}
	<-done
	return nil
}

// AddInput forwards the events of a controller until its channel closes
func (e *Engine) AddInput(c midi.Controller) {
	if err := e.Do(func() { e.inputs[c.ID()] = true }); err != nil {
		debug.Log("engine", "add input %s: %v", c.ID(), err)
		return
	}
	go func() {
		for evt := range c.Events() {
			select {
			case e.events <- evt:
			case <-e.stopped:
				return
			default:
				debug.Log("engine", "input %s: queue full, dropped", c.ID())
			}
		}
	}()
}

// RemoveInput forgets a disconnected controller
func (e *Engine) RemoveInput(id string) {
	if err := e.Do(func() { delete(e.inputs, id) }); err != nil {
		debug.Log("engine", "remove input %s: %v", id, err)
	}
}

func (e *Engine) shutdown() {
	e.router.Panic()
	for _, p := range e.bank.Ports() {
		if err := e.bank.Deselect(p.Name()); err != nil {
			debug.Log("engine", "%v", err)
		}
	}
}

func (e *Engine) handleInput(evt midi.InputEvent) {
	switch evt.Kind {
	case midi.InputBend:
		e.inputBend[evt.Channel&0x0F] = evt.Bend
		debug.LogEvery(32, "engine", "input bend ch=%d %+d", evt.Channel, evt.Bend)
		if e.snapper == nil {
			return
		}
		for key, h := range e.held {
			if h.channel == evt.Channel {
				e.snapper.Bend(key, e.rawNote(h.channel, h.note))
			}
		}

	case midi.InputNoteOn:
		key := e.sourceKey(evt.Channel, evt.Note)
		e.held[key] = heldInput{channel: evt.Channel, note: evt.Note}
		if e.snapper != nil {
			e.snapper.Press(key, evt.Channel, e.rawNote(evt.Channel, evt.Note))
		}
		e.router.NoteOn(key, evt.Velocity, false)

	case midi.InputNoteOff:
		key := e.sourceKey(evt.Channel, evt.Note)
		delete(e.held, key)
		e.router.NoteOff(key, evt.Velocity, false)
	}
}

// sourceKey is the note number in the direct mode; the snapping modes keep
// channels apart
func (e *Engine) sourceKey(channel, note uint8) tuning.SourceKey {
	if e.snapper == nil {
		return tuning.SourceKey(note)
	}
	return snap.Key(channel, note)
}

// rawNote applies the channel's input pitch bend to note
func (e *Engine) rawNote(channel, note uint8) float64 {
	bend := float64(e.inputBend[channel&0x0F]) / midi.BendCenter
	return float64(note) + bend*float64(e.cfg.Input.BendRange)
}

func (e *Engine) applyMode(mode config.ReceiveMode) {
	rc := e.cfg.Receive
	switch mode {
	case config.ModeSnapChannel, config.ModeSnapDivider:
		opts := snap.Options{
			Mode:      snap.ByChannel,
			Tolerance: rc.Tolerance,
			Channel:   uint8(rc.FundamentalChannel),
			Divider:   rc.Divider,
		}
		if mode == config.ModeSnapDivider {
			opts.Mode = snap.ByDivider
		}
		e.snapper = snap.New(e.table, opts)
		e.router.SetKeyMap(e.snapper)
	default:
		mode = config.ModeDirect
		e.snapper = nil
		e.router.SetKeyMap(e.keymap)
	}
	e.cfg.Receive.Mode = mode
	debug.Log("engine", "receive mode %s", mode)
}

// SetMode silences everything and switches the receive mode
func (e *Engine) SetMode(mode config.ReceiveMode) {
	e.router.Panic()
	clear(e.held)
	e.applyMode(mode)
}

// CycleMode switches to the next receive mode
func (e *Engine) CycleMode() {
	e.SetMode(config.NextMode(e.cfg.Receive.Mode))
}

// SetTolerance changes the snapping tolerance
func (e *Engine) SetTolerance(tol float64) {
	tol = max(0, tol)
	e.cfg.Receive.Tolerance = tol
	if e.snapper != nil {
		e.snapper.SetTolerance(tol)
	}
}

// SetKeyMap replaces the direct-mode key map
func (e *Engine) SetKeyMap(km *tuning.KeyMap) {
	e.keymap = km
	if e.snapper == nil {
		e.router.SetKeyMap(km)
	}
}

// Panic turns off every voice on every port
func (e *Engine) Panic() {
	e.router.Panic()
	clear(e.held)
}

// SetOutputs records the output ports present on the system, selects the
// ones configured for auto select and drops selected ports that vanished
func (e *Engine) SetOutputs(names []string) {
	e.outputs = slices.Clone(names)
	for _, p := range e.bank.Ports() {
		if !slices.Contains(names, p.Name()) {
			debug.Log("engine", "output %s vanished", p.Name())
			e.dropPort(p.Name())
		}
	}
	for _, out := range e.cfg.AutoSelectOutputs() {
		if !slices.Contains(names, out.PortName) {
			continue
		}
		if _, ok := e.bank.Port(out.PortName); ok {
			continue
		}
		if err := e.selectPort(out.PortName); err != nil {
			debug.Log("engine", "auto select: %v", err)
		}
	}
}

// SelectPort starts playing on an output port and remembers it for auto select
func (e *Engine) SelectPort(name string) error {
	if err := e.selectPort(name); err != nil {
		return err
	}
	out := e.cfg.FindOutput(name)
	out.AutoSelect = true
	return nil
}

func (e *Engine) selectPort(name string) error {
	if _, ok := e.bank.Port(name); ok {
		return nil
	}
	send, ok := e.senders[name]
	if !ok {
		var err error
		if send, err = e.open(name); err != nil {
			return err
		}
		e.senders[name] = send
	}

	out := e.cfg.FindOutput(name)
	if out == nil {
		e.cfg.AddOutput(config.DefaultOutput(name))
		out = e.cfg.FindOutput(name)
	}
	e.bank.Select(name, send, out.PortConfig())

	// the instrument has to know the bend range before the first note
	for _, class := range []tuning.Class{tuning.Fundamental, tuning.Harmonic} {
		if err := e.bank.SetBendRange(name, class, out.Class(class).BendRange); err != nil {
			if derr := e.bank.Deselect(name); derr != nil {
				debug.Log("engine", "%v", derr)
			}
			return err
		}
	}
	return nil
}

// DeselectPort releases everything on a port and stops playing on it
func (e *Engine) DeselectPort(name string) error {
	if err := e.bank.Deselect(name); err != nil {
		return err
	}
	if out := e.cfg.FindOutput(name); out != nil {
		out.AutoSelect = false
	}
	return nil
}

func (e *Engine) dropPort(name string) {
	if err := e.bank.Deselect(name); err != nil {
		debug.Log("engine", "%v", err)
	}
	delete(e.senders, name)
}

// TogglePort selects or deselects an output
func (e *Engine) TogglePort(name string) error {
	if _, ok := e.bank.Port(name); ok {
		return e.DeselectPort(name)
	}
	return e.SelectPort(name)
}

// SetBendRange changes the bend range of a class on a selected port. It is
// refused while the class holds notes.
func (e *Engine) SetBendRange(name string, class tuning.Class, semitones int) error {
	if semitones < 1 || semitones > 127 {
		return fmt.Errorf("bend range %d outside 1-127", semitones)
	}
	if err := e.bank.SetBendRange(name, class, semitones); err != nil {
		return err
	}
	if out := e.cfg.FindOutput(name); out != nil {
		co := out.Class(class)
		co.BendRange = semitones
		out.SetClass(class, co)
	}
	return nil
}

// SetPiperLength changes the Piper buffer length
func (e *Engine) SetPiperLength(n int) {
	e.piper.SetLength(n)
	e.cfg.Piper.Length = e.piper.Length()
}

// ResetPiper forgets the recorded steps
func (e *Engine) ResetPiper() {
	e.piper.Reset()
}

// Config returns the live config; only touch it on the engine goroutine
func (e *Engine) Config() *config.Config {
	return e.cfg
}
