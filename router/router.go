// Package router turns key presses into fundamental and harmonic voices.
//
// One fundamental sounds at a time: the most recently pressed fundamental key
// wins and releasing it falls back to the previous one that is still held.
// Every change of the sounding fundamental retunes the harmonic table and
// re-sounds the harmonics that are held.
package router

import (
	"slices"

	"overtone/debug"
	"overtone/piper"
	"overtone/tuning"
)

// KeyMap resolves a source key to its fundamental and harmonic slots
type KeyMap interface {
	Lookup(key tuning.SourceKey) (tuning.KeyEntry, bool)
}

// ToneTable holds the fixed fundamentals and the harmonics derived from the
// sounding one
type ToneTable interface {
	Lookup(class tuning.Class, id tuning.ToneID) (tuning.Tone, bool)
	Regenerate(fundamentalHz float64)
}

// Synth is the frequency based voice sink
type Synth interface {
	VoiceOn(hz float64, key tuning.SourceKey, velocity uint8, class tuning.Class)
	VoiceOff(key tuning.SourceKey, class tuning.Class, panic bool)
}

// Output is the MIDI side, usually an *alloc.Bank
type Output interface {
	NoteOn(class tuning.Class, key tuning.SourceKey, tone tuning.ToneID, note float64, velocity uint8)
	NoteOff(class tuning.Class, key tuning.SourceKey)
	Panic()
}

// Sequencer records harmonic notes and replays them from the trigger key
type Sequencer interface {
	Record(key tuning.SourceKey, velocity uint8)
	Press() (piper.Step, bool)
	Release() (piper.Step, bool)
	Playing() bool
}

// Voice is a sounding harmonic
type Voice struct {
	Key      tuning.SourceKey
	ID       tuning.ToneID
	Hz       float64
	Velocity uint8
}

type heldKey struct {
	key      tuning.SourceKey
	velocity uint8
}

// Router is not safe for concurrent use; the engine drives it from a single
// goroutine.
type Router struct {
	keys  KeyMap
	tones ToneTable
	synth Synth
	out   Output
	seq   Sequencer

	stack    stack
	sounding fundamental
	hasFund  bool

	harmonics  []Voice
	held       []heldKey // harmonic keys down, sounding or not, in press order
	current    tuning.ToneID
	hasCurrent bool

	// keys currently holding the piper trigger
	triggers map[tuning.SourceKey]bool

	watch func(key tuning.SourceKey, down bool)
}

// New returns a Router. seq may be nil, in which case trigger keys do nothing.
func New(keys KeyMap, tones ToneTable, synth Synth, out Output, seq Sequencer) *Router {
	return &Router{
		keys:     keys,
		tones:    tones,
		synth:    synth,
		out:      out,
		seq:      seq,
		triggers: make(map[tuning.SourceKey]bool),
	}
}

// OnKey registers a watcher told about every key press and release,
// mapped or not
func (r *Router) OnKey(fn func(key tuning.SourceKey, down bool)) {
	r.watch = fn
}

// SetKeyMap swaps the key map. Voices already sounding are released through
// what was recorded at their note-on.
func (r *Router) SetKeyMap(keys KeyMap) {
	r.keys = keys
}

// NoteOn handles a key press. synthetic presses come from the Piper and are
// not recorded back into it.
func (r *Router) NoteOn(key tuning.SourceKey, velocity uint8, synthetic bool) {
	if r.watch != nil {
		r.watch(key, true)
	}
	entry, ok := r.keys.Lookup(key)
	if !ok {
		// a snapped key may start resolving after the next fundamental change
		r.hold(key, velocity)
		debug.Log("route", "unmapped key=%d", key)
		return
	}

	if entry.Fundamental.IsTone() {
		r.fundamentalOn(key, entry.Fundamental.ID, velocity)
	}
	switch entry.Harmonic.Kind {
	case tuning.RefTone:
		r.hold(key, velocity)
		r.harmonicOn(key, entry.Harmonic.ID, velocity, synthetic)
	case tuning.RefPiper:
		if !synthetic {
			r.triggerOn(key)
		}
	}
}

// NoteOff handles a key release. panic is passed on to the synth so it can
// skip release envelopes.
func (r *Router) NoteOff(key tuning.SourceKey, velocity uint8, panic bool) {
	if r.watch != nil {
		r.watch(key, false)
	}
	r.unhold(key)
	r.fundamentalOff(key, panic)
	r.harmonicOff(key, panic)
	if r.triggers[key] {
		delete(r.triggers, key)
		r.triggerOff()
	}
}

func (r *Router) fundamentalOn(key tuning.SourceKey, id tuning.ToneID, velocity uint8) {
	tone, ok := r.tones.Lookup(tuning.Fundamental, id)
	if !ok {
		debug.Log("route", "key=%d unknown fundamental id=%d", key, id)
		return
	}
	r.tones.Regenerate(tone.Hz)

	prev, hadPrev := r.sounding, r.hasFund
	// a repeated note-on from the same key replaces its entry, as does an
	// older key holding the same tone
	if _, ok := r.stack.removeKey(key); ok {
		debug.Log("route", "key=%d pressed again, old fundamental entry dropped", key)
	}
	if dup, ok := r.stack.findID(id); ok {
		r.stack.removeKey(dup.Key)
	}
	// an older fundamental stays on the stack but stops sounding
	r.fundamentalVoiceOff(false)

	f := fundamental{Hz: tone.Hz, Note: tone.Note, Key: key, Velocity: velocity, ID: id}
	r.stack.push(f)
	r.fundamentalVoiceOn(f)
	debug.Log("route", "fundamental key=%d id=%d hz=%.2f depth=%d", key, id, tone.Hz, r.stack.len())

	if !hadPrev || prev.ID != id {
		r.rebroadcast()
	}
}

func (r *Router) fundamentalOff(key tuning.SourceKey, panic bool) {
	if _, ok := r.stack.removeKey(key); !ok {
		return
	}
	top, ok := r.stack.top()
	if !ok {
		r.fundamentalVoiceOff(panic)
		return
	}
	if r.hasFund && top.Key == r.sounding.Key {
		return
	}
	r.fundamentalVoiceOff(panic)
	r.tones.Regenerate(top.Hz)
	r.fundamentalVoiceOn(top)
	debug.Log("route", "fundamental fallback key=%d id=%d depth=%d", top.Key, top.ID, r.stack.len())
	r.rebroadcast()
}

func (r *Router) fundamentalVoiceOn(f fundamental) {
	r.synth.VoiceOn(f.Hz, f.Key, f.Velocity, tuning.Fundamental)
	r.out.NoteOn(tuning.Fundamental, f.Key, f.ID, f.Note, f.Velocity)
	r.sounding, r.hasFund = f, true
}

func (r *Router) fundamentalVoiceOff(panic bool) {
	if !r.hasFund {
		return
	}
	r.synth.VoiceOff(r.sounding.Key, tuning.Fundamental, panic)
	r.out.NoteOff(tuning.Fundamental, r.sounding.Key)
	r.hasFund = false
}

func (r *Router) harmonicOn(key tuning.SourceKey, id tuning.ToneID, velocity uint8, synthetic bool) {
	tone, ok := r.tones.Lookup(tuning.Harmonic, id)
	if !ok {
		debug.Log("route", "key=%d unknown harmonic id=%d", key, id)
		return
	}
	r.current, r.hasCurrent = id, true
	r.synth.VoiceOn(tone.Hz, key, velocity, tuning.Harmonic)
	r.out.NoteOn(tuning.Harmonic, key, id, tone.Note, velocity)

	v := Voice{Key: key, ID: id, Hz: tone.Hz, Velocity: velocity}
	if i := r.voiceIndex(key); i >= 0 {
		r.harmonics[i] = v
	} else {
		r.harmonics = append(r.harmonics, v)
	}
	if !synthetic && r.seq != nil {
		r.seq.Record(key, velocity)
	}
}

func (r *Router) harmonicOff(key tuning.SourceKey, panic bool) {
	i := r.voiceIndex(key)
	if i < 0 {
		return
	}
	r.harmonics = slices.Delete(r.harmonics, i, i+1)
	r.synth.VoiceOff(key, tuning.Harmonic, panic)
	r.out.NoteOff(tuning.Harmonic, key)
}

func (r *Router) hold(key tuning.SourceKey, velocity uint8) {
	for i := range r.held {
		if r.held[i].key == key {
			r.held[i].velocity = velocity
			return
		}
	}
	r.held = append(r.held, heldKey{key: key, velocity: velocity})
}

func (r *Router) unhold(key tuning.SourceKey) {
	r.held = slices.DeleteFunc(r.held, func(h heldKey) bool { return h.key == key })
}

func (r *Router) voiceIndex(key tuning.SourceKey) int {
	return slices.IndexFunc(r.harmonics, func(v Voice) bool { return v.Key == key })
}

// rebroadcast re-sounds every held harmonic key against the current table.
// The key is looked up again so a snapped key follows its new nearest tone,
// falls silent when nothing is in range and sounds again once something is.
func (r *Router) rebroadcast() {
	if len(r.held) == 0 {
		return
	}
	for _, v := range r.harmonics {
		r.synth.VoiceOff(v.Key, tuning.Harmonic, false)
		r.out.NoteOff(tuning.Harmonic, v.Key)
	}
	r.harmonics = r.harmonics[:0]

	for _, h := range r.held {
		entry, ok := r.keys.Lookup(h.key)
		if !ok || !entry.Harmonic.IsTone() {
			debug.Log("route", "rebroadcast key=%d does not resolve", h.key)
			continue
		}
		tone, ok := r.tones.Lookup(tuning.Harmonic, entry.Harmonic.ID)
		if !ok {
			continue
		}
		r.synth.VoiceOn(tone.Hz, h.key, h.velocity, tuning.Harmonic)
		r.out.NoteOn(tuning.Harmonic, h.key, tone.ID, tone.Note, h.velocity)
		r.harmonics = append(r.harmonics, Voice{Key: h.key, ID: tone.ID, Hz: tone.Hz, Velocity: h.velocity})
	}
	debug.Log("route", "rebroadcast %d/%d harmonics", len(r.harmonics), len(r.held))
}

func (r *Router) triggerOn(key tuning.SourceKey) {
	if r.seq == nil {
		return
	}
	r.triggers[key] = true
	if r.seq.Playing() {
		r.triggerOff()
	}
	step, ok := r.seq.Press()
	if !ok {
		return
	}
	r.NoteOn(step.Key, step.Velocity, true)
}

func (r *Router) triggerOff() {
	if r.seq == nil {
		return
	}
	step, ok := r.seq.Release()
	if !ok {
		return
	}
	r.NoteOff(step.Key, step.Velocity, false)
}

// Panic silences everything the router started and forgets all held state
func (r *Router) Panic() {
	if r.hasFund {
		r.synth.VoiceOff(r.sounding.Key, tuning.Fundamental, true)
		r.hasFund = false
	}
	for _, v := range r.harmonics {
		r.synth.VoiceOff(v.Key, tuning.Harmonic, true)
	}
	r.harmonics = nil
	r.held = nil
	r.stack.clear()
	r.hasCurrent = false
	clear(r.triggers)
	if r.seq != nil && r.seq.Playing() {
		r.seq.Release()
	}
	r.out.Panic()
	debug.Log("route", "panic")
}

// Fundamental returns the sounding fundamental
func (r *Router) Fundamental() (tuning.ToneID, float64, bool) {
	return r.sounding.ID, r.sounding.Hz, r.hasFund
}

// HeldFundamentals returns the depth of the fundamental stack
func (r *Router) HeldFundamentals() int {
	return r.stack.len()
}

// Current returns the most recently played harmonic id
func (r *Router) Current() (tuning.ToneID, bool) {
	return r.current, r.hasCurrent
}

// Harmonics returns the sounding harmonics in press order
func (r *Router) Harmonics() []Voice {
	return slices.Clone(r.harmonics)
}
