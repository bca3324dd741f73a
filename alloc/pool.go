// Package alloc multiplexes microtonal notes over the 16 channels of a MIDI
// port. Pitch bend is per channel, so each sounding note gets a channel of its
// own carrying the note's deviation from the nearest semitone.
package alloc

import (
	"errors"
	"math"
	"slices"

	"overtone/debug"
	"overtone/midi"
	"overtone/tuning"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ErrNotesHeld is returned when the bend range is changed mid-performance
var ErrNotesHeld = errors.New("alloc: notes are held")

// Emit receives the wire messages of a pool
type Emit func(channel uint8, msg gomidi.Message)

type slotState uint8

const (
	slotUnavailable slotState = iota // not in this pool's channel set
	slotFree
	slotHeld
)

type slot struct {
	state    slotState
	key      tuning.SourceKey
	note     uint8
	velocity uint8
	tone     tuning.ToneID
}

// HeldNote describes a sounding note and the channel carrying it
type HeldNote struct {
	Channel  uint8
	Key      tuning.SourceKey
	Note     uint8
	Velocity uint8
	Tone     tuning.ToneID
}

// Pool owns the channels of one tone class on one port. Each channel is
// either free or held by exactly one key; a key holds at most one channel.
type Pool struct {
	class tuning.Class
	emit  Emit

	slots        [midi.NumChannels]slot
	order        []uint8 // held channels, oldest assignment first
	lastAssigned int
	bendRange    int
}

// NewPool returns a pool over channels. The fundamental pool is monophonic.
func NewPool(class tuning.Class, channels []uint8, bendRange int, emit Emit) *Pool {
	p := &Pool{
		class:        class,
		emit:         emit,
		lastAssigned: -1,
		bendRange:    bendRange,
	}
	if p.bendRange < 1 {
		p.bendRange = 1
	}
	for _, ch := range channels {
		if int(ch) < midi.NumChannels {
			p.slots[ch].state = slotFree
		}
	}
	return p
}

// SplitNote rounds a fractional note number to the nearest semitone and
// returns the remaining deviation in [-0.5, 0.5).
func SplitNote(note float64) (int, float64) {
	n := math.Floor(note)
	frac := note - n
	if frac >= 0.5 {
		n++
		frac--
	}
	return int(n), frac
}

// BendAmount encodes a deviation in semitones as a 14-bit pitch bend value
func BendAmount(frac float64, bendRange int) int {
	pb := int(math.Round(frac*(midi.BendCenter/float64(bendRange)) + midi.BendCenter))
	return max(0, min(midi.BendMax, pb))
}

// Allocate sounds note for key on a channel of the pool
func (p *Pool) Allocate(key tuning.SourceKey, tone tuning.ToneID, note float64, velocity uint8) {
	intNote, frac := SplitNote(note)
	if intNote < 0 || intNote > 127 {
		return
	}

	if p.holds(key) {
		p.Release(key)
	}

	if p.class == tuning.Fundamental {
		// monophonic: the previous fundamental gives its channel back first
		for len(p.order) > 0 {
			p.releaseChannel(p.order[0])
		}
	}

	ch, ok := p.nextFree()
	if !ok {
		ch, ok = p.steal()
		if !ok {
			debug.Log("alloc", "%s: no channels to assign or steal, dropped key=%d", p.class, key)
			return
		}
	}

	p.slots[ch] = slot{state: slotHeld, key: key, note: uint8(intNote), velocity: velocity, tone: tone}
	p.order = append(p.order, ch)
	p.lastAssigned = int(ch)

	p.emit(ch, midi.PitchBendMsg(ch, BendAmount(frac, p.bendRange)))
	p.emit(ch, midi.NoteOnMsg(ch, uint8(intNote), velocity))
}

// Release ends the note held for key, if any
func (p *Pool) Release(key tuning.SourceKey) {
	for ch := range p.slots {
		if p.slots[ch].state == slotHeld && p.slots[ch].key == key {
			p.releaseChannel(uint8(ch))
			return
		}
	}
}

// ReleaseAll ends every held note, oldest first
func (p *Pool) ReleaseAll() {
	for len(p.order) > 0 {
		p.releaseChannel(p.order[0])
	}
}

func (p *Pool) releaseChannel(ch uint8) {
	s := p.slots[ch]
	p.emit(ch, midi.NoteOffMsg(ch, s.note))
	p.slots[ch] = slot{state: slotFree}
	if i := slices.Index(p.order, ch); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
}

// nextFree scans upward from the channel after the last one handed out,
// then wraps to the lowest free channel
func (p *Pool) nextFree() (uint8, bool) {
	for ch := p.lastAssigned + 1; ch < midi.NumChannels; ch++ {
		if p.slots[ch].state == slotFree {
			return uint8(ch), true
		}
	}
	for ch := 0; ch < midi.NumChannels; ch++ {
		if p.slots[ch].state == slotFree {
			return uint8(ch), true
		}
	}
	return 0, false
}

// steal frees the channel assigned longest ago
func (p *Pool) steal() (uint8, bool) {
	if len(p.order) == 0 {
		return 0, false
	}
	ch := p.order[0]
	debug.Log("alloc", "%s: steal ch=%d from key=%d", p.class, ch, p.slots[ch].key)
	p.releaseChannel(ch)
	return ch, true
}

func (p *Pool) holds(key tuning.SourceKey) bool {
	for ch := range p.slots {
		if p.slots[ch].state == slotHeld && p.slots[ch].key == key {
			return true
		}
	}
	return false
}

// SetBendRange changes the pitch bend range and pushes it to every channel of
// the pool. It is refused while any note is held.
func (p *Pool) SetBendRange(semitones int) error {
	if len(p.order) > 0 {
		return ErrNotesHeld
	}
	if semitones < 1 || semitones > 127 {
		return errors.New("alloc: bend range out of 1..127")
	}
	p.bendRange = semitones
	for ch := range p.slots {
		if p.slots[ch].state == slotUnavailable {
			continue
		}
		for _, msg := range midi.BendRangeMsgs(uint8(ch), uint8(semitones)) {
			p.emit(uint8(ch), msg)
		}
	}
	return nil
}

// BendRange returns the configured pitch bend range in semitones
func (p *Pool) BendRange() int {
	return p.bendRange
}

// Class returns the tone class of the pool
func (p *Pool) Class() tuning.Class {
	return p.class
}

// Free returns the unassigned channels in ascending order
func (p *Pool) Free() []uint8 {
	var free []uint8
	for ch := range p.slots {
		if p.slots[ch].state == slotFree {
			free = append(free, uint8(ch))
		}
	}
	return free
}

// Held returns the sounding notes, oldest assignment first
func (p *Pool) Held() []HeldNote {
	held := make([]HeldNote, 0, len(p.order))
	for _, ch := range p.order {
		s := p.slots[ch]
		held = append(held, HeldNote{Channel: ch, Key: s.key, Note: s.note, Velocity: s.velocity, Tone: s.tone})
	}
	return held
}

// Channels returns every channel of the pool in ascending order
func (p *Pool) Channels() []uint8 {
	var chans []uint8
	for ch := range p.slots {
		if p.slots[ch].state != slotUnavailable {
			chans = append(chans, uint8(ch))
		}
	}
	return chans
}
