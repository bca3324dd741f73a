package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI status bytes (channel in the low nibble)
const (
	NoteOn    uint8 = 0x90
	NoteOff   uint8 = 0x80
	CC        uint8 = 0xB0
	PitchBend uint8 = 0xE0
)

const (
	NumChannels     = 16
	ReleaseVelocity = 64
	BendCenter      = 8192
	BendMax         = 16383
)

// RPN controllers used to push the pitch bend range
const (
	ccDataEntry = 6
	ccRPNLSB    = 100
	ccRPNMSB    = 101
)

// NoteOnMsg is a 3-byte note-on
func NoteOnMsg(channel, note, velocity uint8) gomidi.Message {
	return gomidi.NoteOn(channel, note, velocity)
}

// NoteOffMsg is a note-off with the release velocity used for every release
func NoteOffMsg(channel, note uint8) gomidi.Message {
	return gomidi.NoteOffVelocity(channel, note, ReleaseVelocity)
}

// PitchBendMsg takes an absolute 14-bit amount centered at BendCenter
func PitchBendMsg(channel uint8, amount int) gomidi.Message {
	if amount < 0 {
		amount = 0
	}
	if amount > BendMax {
		amount = BendMax
	}
	return gomidi.Pitchbend(channel, int16(amount-BendCenter))
}

// BendRangeMsgs selects RPN 0, writes the range, then deselects the RPN
func BendRangeMsgs(channel, semitones uint8) []gomidi.Message {
	return []gomidi.Message{
		gomidi.ControlChange(channel, ccRPNLSB, 0),
		gomidi.ControlChange(channel, ccRPNMSB, 0),
		gomidi.ControlChange(channel, ccDataEntry, semitones),
		gomidi.ControlChange(channel, ccRPNLSB, 127),
		gomidi.ControlChange(channel, ccRPNMSB, 127),
	}
}

// InputKind tells what an InputEvent carries
type InputKind uint8

const (
	InputNoteOn InputKind = iota
	InputNoteOff
	InputBend
)

// InputEvent is a note or pitch bend received from a controller
type InputEvent struct {
	Kind     InputKind
	Channel  uint8
	Note     uint8
	Velocity uint8
	Bend     int16 // relative to center, InputBend only
	Stamp    int32 // driver timestamp in ms
}

// ParseInput converts a raw message into an InputEvent. Note-on with
// velocity 0 is a note-off.
func ParseInput(msg gomidi.Message, stamp int32) (InputEvent, bool) {
	var channel, note, velocity uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		return InputEvent{Kind: InputNoteOn, Channel: channel, Note: note, Velocity: velocity, Stamp: stamp}, true
	case msg.GetNoteOff(&channel, &note, &velocity):
		return InputEvent{Kind: InputNoteOff, Channel: channel, Note: note, Velocity: velocity, Stamp: stamp}, true
	case msg.GetNoteOn(&channel, &note, &velocity):
		// velocity 0
		return InputEvent{Kind: InputNoteOff, Channel: channel, Note: note, Stamp: stamp}, true
	case msg.GetPitchBend(&channel, &rel, &abs):
		return InputEvent{Kind: InputBend, Channel: channel, Bend: rel, Stamp: stamp}, true
	}
	return InputEvent{}, false
}
