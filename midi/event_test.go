package midi

import (
	"bytes"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestWireBytes(t *testing.T) {
	tests := []struct {
		name string
		msg  gomidi.Message
		want []byte
	}{
		{"note on", NoteOnMsg(3, 61, 100), []byte{0x93, 61, 100}},
		{"note off", NoteOffMsg(15, 40), []byte{0x8F, 40, 64}},
		{"bend center", PitchBendMsg(0, BendCenter), []byte{0xE0, 0x00, 0x40}},
		{"bend 6144", PitchBendMsg(1, 6144), []byte{0xE1, 0x00, 0x30}},
		{"bend clamps low", PitchBendMsg(2, -5), []byte{0xE2, 0x00, 0x00}},
		{"bend clamps high", PitchBendMsg(2, 20000), []byte{0xE2, 0x7F, 0x7F}},
	}
	for _, tt := range tests {
		if got := tt.msg.Bytes(); !bytes.Equal(got, tt.want) {
			t.Errorf("%s: got % X, want % X", tt.name, got, tt.want)
		}
	}
}

func TestBendRangeMsgs(t *testing.T) {
	msgs := BendRangeMsgs(4, 12)
	want := [][]byte{
		{0xB4, 100, 0},
		{0xB4, 101, 0},
		{0xB4, 6, 12},
		{0xB4, 100, 127},
		{0xB4, 101, 127},
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if !bytes.Equal(msgs[i].Bytes(), want[i]) {
			t.Errorf("msg %d: got % X, want % X", i, msgs[i].Bytes(), want[i])
		}
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name string
		msg  gomidi.Message
		want InputEvent
		ok   bool
	}{
		{"note on", gomidi.NoteOn(2, 60, 90), InputEvent{Kind: InputNoteOn, Channel: 2, Note: 60, Velocity: 90}, true},
		{"note on velocity 0", gomidi.NoteOn(2, 60, 0), InputEvent{Kind: InputNoteOff, Channel: 2, Note: 60}, true},
		{"note off", gomidi.NoteOffVelocity(1, 61, 30), InputEvent{Kind: InputNoteOff, Channel: 1, Note: 61, Velocity: 30}, true},
		{"bend", gomidi.Pitchbend(5, -4096), InputEvent{Kind: InputBend, Channel: 5, Bend: -4096}, true},
		{"cc", gomidi.ControlChange(0, 1, 64), InputEvent{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseInput(tt.msg, 0)
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: got %+v, %v; want %+v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
