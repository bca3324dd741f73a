package piper

import (
	"testing"

	"overtone/midi"
	"overtone/tuning"
)

func keys(steps []Step) []tuning.SourceKey {
	out := make([]tuning.SourceKey, len(steps))
	for i, s := range steps {
		out[i] = s.Key
	}
	return out
}

func cycle(t *testing.T, p *Piper) tuning.SourceKey {
	t.Helper()
	on, ok := p.Press()
	if !ok || on.Status != midi.NoteOn {
		t.Fatalf("press = %+v, %v", on, ok)
	}
	off, ok := p.Release()
	if !ok || off.Status != midi.NoteOff || off.Key != on.Key {
		t.Fatalf("release = %+v, %v after %+v", off, ok, on)
	}
	return on.Key
}

func TestPiperWrapsAround(t *testing.T) {
	p := New(3)
	p.Record(1, 100) // A
	p.Record(2, 100) // B
	p.Record(3, 100) // C

	var played []tuning.SourceKey
	for i := 0; i < 4; i++ {
		played = append(played, cycle(t, p))
	}
	want := []tuning.SourceKey{1, 2, 3, 1}
	for i := range want {
		if played[i] != want[i] {
			t.Fatalf("played %v, want %v", played, want)
		}
	}
}

func TestPiperKeepsLastN(t *testing.T) {
	p := New(3)
	for k := tuning.SourceKey(1); k <= 5; k++ {
		p.Record(k, 90)
	}
	if got := cycle(t, p); got != 3 {
		t.Fatalf("first step = %d, want 3", got)
	}
	if got := keys(p.Steps()); len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("buffer = %v", got)
	}
}

func TestPiperInsertsAtCursor(t *testing.T) {
	p := New(8)
	p.Record(1, 100)
	p.Record(2, 100)
	cycle(t, p) // plays 1, cursor -> 1

	p.Record(9, 100)
	// 9 goes in at the cursor, the cursor moves past it to 2
	if got := cycle(t, p); got != 2 {
		t.Fatalf("played %d, want 2", got)
	}
	if got := keys(p.Steps()); len(got) != 3 || got[0] != 1 || got[1] != 9 || got[2] != 2 {
		t.Fatalf("buffer = %v", got)
	}
	if got := cycle(t, p); got != 1 {
		t.Fatalf("after wrap played %d, want 1", got)
	}
}

func TestPiperEmpty(t *testing.T) {
	p := New(4)
	if _, ok := p.Press(); ok {
		t.Fatal("empty piper played")
	}
	if _, ok := p.Release(); ok {
		t.Fatal("release without press")
	}
}

func TestPiperVelocity(t *testing.T) {
	p := New(4)
	p.Record(7, 33)
	on, _ := p.Press()
	off, _ := p.Release()
	if on.Velocity != 33 || off.Velocity != 33 {
		t.Fatalf("on %+v off %+v", on, off)
	}
}

func TestPiperSetLength(t *testing.T) {
	p := New(5)
	for k := tuning.SourceKey(1); k <= 5; k++ {
		p.Record(k, 100)
	}
	cycle(t, p)
	p.SetLength(2)
	if got := keys(p.Steps()); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Fatalf("buffer = %v", got)
	}
	if p.Cursor() < 0 || p.Cursor() >= 2 {
		t.Fatalf("cursor = %d", p.Cursor())
	}

	p.Reset()
	if len(p.Steps()) != 0 || p.Pending() != 0 || p.Playing() {
		t.Fatal("reset left state behind")
	}
}
