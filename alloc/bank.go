package alloc

import (
	"errors"
	"fmt"
	"time"

	"overtone/debug"
	"overtone/midi"
	"overtone/tuning"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ErrUnknownPort is returned for operations on a port that is not selected
var ErrUnknownPort = errors.New("alloc: port not selected")

// ClassConfig configures one tone class on a port
type ClassConfig struct {
	Channels  []uint8
	BendRange int
	Delay     time.Duration // 0..20ms, applied to every message of the class
}

// PortConfig configures both classes of a port
type PortConfig struct {
	Classes [tuning.NumClasses]ClassConfig
}

// DefaultPortConfig gives the fundamental channel 0 and the harmonics 1..15
func DefaultPortConfig() PortConfig {
	harm := make([]uint8, 0, 15)
	for ch := uint8(1); ch < midi.NumChannels; ch++ {
		harm = append(harm, ch)
	}
	return PortConfig{Classes: [tuning.NumClasses]ClassConfig{
		tuning.Fundamental: {Channels: []uint8{0}, BendRange: 2},
		tuning.Harmonic:    {Channels: harm, BendRange: 2},
	}}
}

// Port is an output port selected for playing: one pool per class feeding a
// dispatcher
type Port struct {
	name     string
	dispatch *midi.Dispatcher
	pools    [tuning.NumClasses]*Pool
	delays   [tuning.NumClasses]time.Duration
}

func newPort(name string, send midi.SendFunc, cfg PortConfig) *Port {
	p := &Port{name: name, dispatch: midi.NewDispatcher(name, send)}
	for c := range p.pools {
		cc := cfg.Classes[c]
		p.delays[c] = cc.Delay
		delay := cc.Delay
		p.pools[c] = NewPool(tuning.Class(c), cc.Channels, cc.BendRange, func(ch uint8, msg gomidi.Message) {
			p.dispatch.Send(ch, msg, delay)
		})
	}
	return p
}

// Name returns the port name
func (p *Port) Name() string { return p.name }

// Pool returns the pool of class
func (p *Port) Pool(class tuning.Class) *Pool { return p.pools[class] }

// Bank holds the selected output ports. Ports share nothing.
type Bank struct {
	ports map[string]*Port
	order []string
}

// NewBank returns an empty bank
func NewBank() *Bank {
	return &Bank{ports: make(map[string]*Port)}
}

// Select starts playing on a port. Selecting an already selected port is a no-op.
func (b *Bank) Select(name string, send midi.SendFunc, cfg PortConfig) *Port {
	if p, ok := b.ports[name]; ok {
		return p
	}
	p := newPort(name, send, cfg)
	b.ports[name] = p
	b.order = append(b.order, name)
	debug.Log("alloc", "port selected: %s", name)
	return p
}

// Deselect releases every note on the port, flushes pending sends and drops it
func (b *Bank) Deselect(name string) error {
	p, ok := b.ports[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}
	for _, pool := range p.pools {
		pool.ReleaseAll()
	}
	p.dispatch.Flush()
	delete(b.ports, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	debug.Log("alloc", "port deselected: %s", name)
	return nil
}

// Port returns a selected port
func (b *Bank) Port(name string) (*Port, bool) {
	p, ok := b.ports[name]
	return p, ok
}

// Ports returns the selected ports in selection order
func (b *Bank) Ports() []*Port {
	ports := make([]*Port, 0, len(b.order))
	for _, n := range b.order {
		ports = append(ports, b.ports[n])
	}
	return ports
}

// NoteOn sounds a tone on every selected port
func (b *Bank) NoteOn(class tuning.Class, key tuning.SourceKey, tone tuning.ToneID, note float64, velocity uint8) {
	for _, n := range b.order {
		b.ports[n].pools[class].Allocate(key, tone, note, velocity)
	}
}

// NoteOff ends key on every selected port
func (b *Bank) NoteOff(class tuning.Class, key tuning.SourceKey) {
	for _, n := range b.order {
		b.ports[n].pools[class].Release(key)
	}
}

// Panic voids pending deferred sends and releases every held note on every port
func (b *Bank) Panic() {
	for _, n := range b.order {
		p := b.ports[n]
		p.dispatch.Cancel()
		for _, pool := range p.pools {
			pool.ReleaseAll()
		}
	}
	debug.Log("alloc", "panic on %d ports", len(b.order))
}

// SetBendRange changes the bend range of one class on a port
func (b *Bank) SetBendRange(name string, class tuning.Class, semitones int) error {
	p, ok := b.ports[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}
	if err := p.pools[class].SetBendRange(semitones); err != nil {
		return fmt.Errorf("%s %s: %w", name, class, err)
	}
	return nil
}

// PortStatus is a read-only view of a port for display
type PortStatus struct {
	Name      string
	Held      [tuning.NumClasses][]HeldNote
	Channels  [tuning.NumClasses][]uint8
	BendRange [tuning.NumClasses]int
	Delay     [tuning.NumClasses]time.Duration
	Pending   int
}

// Snapshot describes every selected port
func (b *Bank) Snapshot() []PortStatus {
	out := make([]PortStatus, 0, len(b.order))
	for _, n := range b.order {
		p := b.ports[n]
		st := PortStatus{Name: n, Pending: p.dispatch.Pending()}
		for c, pool := range p.pools {
			st.Held[c] = pool.Held()
			st.Channels[c] = pool.Channels()
			st.BendRange[c] = pool.BendRange()
			st.Delay[c] = p.delays[c]
		}
		out = append(out, st)
	}
	return out
}
