package engine

import (
	"slices"

	"overtone/alloc"
	"overtone/config"
	"overtone/piper"
	"overtone/router"
	"overtone/tuning"
)

// Status is an immutable snapshot of the engine for display
type Status struct {
	Mode      config.ReceiveMode
	Tolerance float64

	Fundamental      tuning.ToneID
	FundamentalHz    float64
	HasFundamental   bool
	HeldFundamentals int

	Harmonics  []router.Voice
	Current    tuning.ToneID
	HasCurrent bool

	Outputs []string // every output port on the system
	Ports   []alloc.PortStatus
	Inputs  []string

	Piper PiperStatus

	// mapped keys in the direct mode, empty while snapping
	Keys []KeyState

	LastKey  tuning.SourceKey
	LastDown bool
	AnyKey   bool
}

// PiperStatus describes the Piper buffer
type PiperStatus struct {
	Steps   []piper.Step
	Cursor  int
	Pending int
	Length  int
	Playing bool
}

// KeyState is a mapped key and whether it is held down
type KeyState struct {
	Key   tuning.SourceKey
	Entry tuning.KeyEntry
	Held  bool
}

// Selected reports whether an output port is selected
func (s Status) Selected(name string) bool {
	return slices.ContainsFunc(s.Ports, func(p alloc.PortStatus) bool { return p.Name == name })
}

// Status returns the snapshot published after the last handled event
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// publish builds a new snapshot and notifies the TUI
func (e *Engine) publish() {
	st := Status{
		Mode:             e.cfg.Receive.Mode,
		Tolerance:        e.cfg.Receive.Tolerance,
		HeldFundamentals: e.router.HeldFundamentals(),
		Harmonics:        e.router.Harmonics(),
		Outputs:          slices.Clone(e.outputs),
		Ports:            e.bank.Snapshot(),
		Piper: PiperStatus{
			Steps:   e.piper.Steps(),
			Cursor:  e.piper.Cursor(),
			Pending: e.piper.Pending(),
			Length:  e.piper.Length(),
			Playing: e.piper.Playing(),
		},
		LastKey:  e.lastKey,
		LastDown: e.lastDown,
		AnyKey:   e.anyKey,
	}
	st.Fundamental, st.FundamentalHz, st.HasFundamental = e.router.Fundamental()
	st.Current, st.HasCurrent = e.router.Current()
	if e.snapper == nil {
		for _, key := range e.keymap.Keys() {
			entry, _ := e.keymap.Lookup(key)
			_, held := e.held[key]
			st.Keys = append(st.Keys, KeyState{Key: key, Entry: entry, Held: held})
		}
	}
	for id := range e.inputs {
		st.Inputs = append(st.Inputs, id)
	}
	slices.Sort(st.Inputs)

	e.statusMu.Lock()
	e.status = st
	e.statusMu.Unlock()

	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}
