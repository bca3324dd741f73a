// Package snap resolves arbitrary input notes to the nearest tone of a table
// when the controller keys are not mapped 1:1 to tones.
package snap

import (
	"math"

	"overtone/debug"
	"overtone/tuning"
)

// Nearest returns the candidate whose note is closest to raw. Ties keep the
// first candidate in iteration order. A best distance above tolerance is no
// match.
func Nearest(raw float64, candidates []tuning.Tone, tolerance float64) (tuning.Tone, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		d := math.Abs(c.Note - raw)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > tolerance {
		return tuning.Tone{}, false
	}
	return candidates[best], true
}

// Mode selects how an input is assigned to a tone class
type Mode int

const (
	ByChannel Mode = iota // a dedicated input channel carries fundamentals
	ByDivider             // notes below the divider are fundamentals
)

// Tones is the part of the tone table the snapper reads
type Tones interface {
	Tones(class tuning.Class) []tuning.Tone
}

// Snapper is the key map used in the snapping receive modes. It remembers the
// raw note each key produced and resolves it against the table on every
// lookup, so a regenerated harmonic table re-resolves held keys.
type Snapper struct {
	tones     Tones
	mode      Mode
	tolerance float64
	channel   uint8 // fundamental input channel (ByChannel)
	divider   float64

	keys map[tuning.SourceKey]snapped
}

type snapped struct {
	class tuning.Class
	raw   float64
}

// Options configures a Snapper
type Options struct {
	Mode      Mode
	Tolerance float64
	Channel   uint8
	Divider   float64
}

// New returns a Snapper over tones
func New(tones Tones, opts Options) *Snapper {
	return &Snapper{
		tones:     tones,
		mode:      opts.Mode,
		tolerance: opts.Tolerance,
		channel:   opts.Channel,
		divider:   opts.Divider,
		keys:      make(map[tuning.SourceKey]snapped),
	}
}

// Key builds the source key for a note on an input channel
func Key(channel, note uint8) tuning.SourceKey {
	return tuning.SourceKey(int(channel&0x0F)<<7 | int(note&0x7F))
}

// Classify decides which class an input note belongs to
func (s *Snapper) Classify(channel uint8, raw float64) tuning.Class {
	switch s.mode {
	case ByChannel:
		if channel == s.channel {
			return tuning.Fundamental
		}
		return tuning.Harmonic
	default:
		if raw < s.divider {
			return tuning.Fundamental
		}
		return tuning.Harmonic
	}
}

// Press records the raw note for key and returns its class. The mapping is
// kept after release so Piper replays of the key still resolve.
func (s *Snapper) Press(key tuning.SourceKey, channel uint8, raw float64) tuning.Class {
	class := s.Classify(channel, raw)
	s.keys[key] = snapped{class: class, raw: raw}
	return class
}

// Bend moves the raw note of a key (e.g. from input pitch bend)
func (s *Snapper) Bend(key tuning.SourceKey, raw float64) {
	if k, ok := s.keys[key]; ok {
		k.raw = raw
		s.keys[key] = k
	}
}

// Lookup resolves key against the current table
func (s *Snapper) Lookup(key tuning.SourceKey) (tuning.KeyEntry, bool) {
	k, ok := s.keys[key]
	if !ok {
		return tuning.KeyEntry{}, false
	}
	tone, ok := Nearest(k.raw, s.tones.Tones(k.class), s.tolerance)
	if !ok {
		debug.Log("snap", "key=%d raw=%.2f class=%s: no tone within %.2f", key, k.raw, k.class, s.tolerance)
		return tuning.KeyEntry{}, false
	}

	var e tuning.KeyEntry
	if k.class == tuning.Fundamental {
		e.Fundamental = tuning.ToneRef(tone.ID)
	} else {
		e.Harmonic = tuning.ToneRef(tone.ID)
	}
	return e, true
}

// SetTolerance changes the maximum snapping distance in semitones
func (s *Snapper) SetTolerance(tol float64) {
	s.tolerance = tol
}
