// Package piper replays the most recently played harmonic notes one step at
// a time from a dedicated trigger key.
package piper

import (
	"slices"

	"overtone/debug"
	"overtone/midi"
	"overtone/tuning"
)

// DefaultLength is the buffer length used when none is configured
const DefaultLength = 8

// Step is a recorded or replayed note event
type Step struct {
	Status   uint8 // midi.NoteOn or midi.NoteOff
	Key      tuning.SourceKey
	Velocity uint8
}

// Piper is a bounded step sequencer. Recorded notes wait in a pending queue
// until the next trigger press inserts them into the buffer at the cursor.
type Piper struct {
	maxLength int
	buf       []Step
	pending   []Step
	cursor    int

	current Step
	playing bool
}

// New returns a Piper keeping at most maxLength steps
func New(maxLength int) *Piper {
	if maxLength < 1 {
		maxLength = DefaultLength
	}
	return &Piper{maxLength: maxLength}
}

// Record queues a played note for the next trigger press
func (p *Piper) Record(key tuning.SourceKey, velocity uint8) {
	p.pending = append(p.pending, Step{Status: midi.NoteOn, Key: key, Velocity: velocity})
	if len(p.pending) > p.maxLength {
		p.pending = slices.Delete(p.pending, 0, len(p.pending)-p.maxLength)
	}
}

// Press flushes pending notes into the buffer and returns the note-on for the
// step at the cursor. ok is false when there is nothing to play.
func (p *Piper) Press() (Step, bool) {
	p.flush()
	if len(p.buf) == 0 {
		return Step{}, false
	}
	p.current = p.buf[p.cursor]
	p.playing = true
	debug.Log("piper", "press step=%d/%d key=%d", p.cursor, len(p.buf), p.current.Key)
	return p.current, true
}

// Release returns the note-off for the step started by Press and moves the
// cursor to the next step, wrapping at the end.
func (p *Piper) Release() (Step, bool) {
	if !p.playing {
		return Step{}, false
	}
	p.playing = false
	if len(p.buf) > 0 {
		p.cursor = (p.cursor + 1) % len(p.buf)
	}
	off := p.current
	off.Status = midi.NoteOff
	return off, true
}

// flush inserts the pending steps at the cursor, moves the cursor past them
// and trims the oldest steps beyond maxLength
func (p *Piper) flush() {
	if len(p.pending) == 0 {
		return
	}
	p.buf = slices.Insert(p.buf, p.cursor, p.pending...)
	p.cursor += len(p.pending)
	p.pending = p.pending[:0]

	if over := len(p.buf) - p.maxLength; over > 0 {
		p.buf = slices.Delete(p.buf, 0, over)
		p.cursor = max(0, p.cursor-over)
	}
	p.cursor %= len(p.buf)
}

// Playing reports whether a step is sounding
func (p *Piper) Playing() bool {
	return p.playing
}

// SetLength changes the buffer capacity, trimming the oldest steps
func (p *Piper) SetLength(n int) {
	if n < 1 {
		n = 1
	}
	p.maxLength = n
	if over := len(p.buf) - n; over > 0 {
		p.buf = slices.Delete(p.buf, 0, over)
		p.cursor = max(0, p.cursor-over)
		p.cursor %= len(p.buf)
	}
	if over := len(p.pending) - n; over > 0 {
		p.pending = slices.Delete(p.pending, 0, over)
	}
}

// Length returns the buffer capacity
func (p *Piper) Length() int {
	return p.maxLength
}

// Reset forgets every recorded step
func (p *Piper) Reset() {
	p.buf = nil
	p.pending = nil
	p.cursor = 0
	p.playing = false
}

// Steps returns a copy of the buffer
func (p *Piper) Steps() []Step {
	return slices.Clone(p.buf)
}

// Cursor returns the index of the next step to play
func (p *Piper) Cursor() int {
	return p.cursor
}

// Pending returns the number of recorded steps not yet in the buffer
func (p *Piper) Pending() int {
	return len(p.pending)
}
