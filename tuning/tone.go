package tuning

import (
	"fmt"
	"math"
)

// Class separates the monophonic fundamental from the polyphonic harmonics
type Class int

const (
	Fundamental Class = iota
	Harmonic
)

// NumClasses is the number of tone classes
const NumClasses = 2

func (c Class) String() string {
	switch c {
	case Fundamental:
		return "fundamental"
	case Harmonic:
		return "harmonic"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ToneID identifies a tone within its class
type ToneID int

// SourceKey identifies the physical (or synthesized) key that produced an event
type SourceKey int

// Tone is one entry of a tone table
type Tone struct {
	ID   ToneID
	Hz   float64
	Note float64 // fractional MIDI note number
}

// HzToNote converts a frequency to a fractional MIDI note number (A4 = 69 = 440 Hz)
func HzToNote(hz float64) float64 {
	return 69 + 12*math.Log2(hz/440)
}

// NoteToHz converts a fractional MIDI note number to a frequency
func NoteToHz(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

// RefKind tags what a key map slot points at
type RefKind uint8

const (
	RefNone RefKind = iota
	RefTone
	RefPiper // the Piper trigger, not a tone
)

// Ref is a key map slot: nothing, a tone, or the Piper trigger
type Ref struct {
	Kind RefKind
	ID   ToneID
}

// ToneRef returns a Ref pointing at tone id
func ToneRef(id ToneID) Ref { return Ref{Kind: RefTone, ID: id} }

// PiperRef returns a Ref for the Piper trigger
func PiperRef() Ref { return Ref{Kind: RefPiper} }

func (r Ref) IsTone() bool  { return r.Kind == RefTone }
func (r Ref) IsPiper() bool { return r.Kind == RefPiper }
func (r Ref) IsNone() bool  { return r.Kind == RefNone }

// KeyEntry is what a key sounds: at most one fundamental and one harmonic slot
type KeyEntry struct {
	Fundamental Ref
	Harmonic    Ref
}
