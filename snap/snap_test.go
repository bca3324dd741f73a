package snap

import (
	"testing"

	"overtone/tuning"
)

func tones(notes ...float64) []tuning.Tone {
	out := make([]tuning.Tone, len(notes))
	for i, n := range notes {
		out[i] = tuning.Tone{ID: tuning.ToneID(i + 1), Note: n, Hz: tuning.NoteToHz(n)}
	}
	return out
}

func TestNearest(t *testing.T) {
	candidates := tones(60, 64, 67)
	tests := []struct {
		raw    float64
		tol    float64
		wantOK bool
		want   float64
	}{
		{64.5, 1, true, 64},
		{65.6, 1, false, 0},
		{60, 0, true, 60},
		{62, 2, true, 60}, // tie between 60 and 64 keeps the first
		{70.1, 3, false, 0},
		{67.9, 1, true, 67},
	}
	for _, tt := range tests {
		got, ok := Nearest(tt.raw, candidates, tt.tol)
		if ok != tt.wantOK {
			t.Errorf("Nearest(%v, tol %v) ok = %v, want %v", tt.raw, tt.tol, ok, tt.wantOK)
			continue
		}
		if ok && got.Note != tt.want {
			t.Errorf("Nearest(%v, tol %v) = %v, want %v", tt.raw, tt.tol, got.Note, tt.want)
		}
	}
}

func TestNearestEmpty(t *testing.T) {
	if _, ok := Nearest(60, nil, 100); ok {
		t.Fatal("empty candidate set must not match")
	}
}

type fakeTones map[tuning.Class][]tuning.Tone

func (f fakeTones) Tones(c tuning.Class) []tuning.Tone { return f[c] }

func TestClassify(t *testing.T) {
	byChannel := New(fakeTones{}, Options{Mode: ByChannel, Channel: 9})
	if c := byChannel.Classify(9, 30); c != tuning.Fundamental {
		t.Errorf("channel 9 -> %s", c)
	}
	if c := byChannel.Classify(0, 30); c != tuning.Harmonic {
		t.Errorf("channel 0 -> %s", c)
	}

	byDivider := New(fakeTones{}, Options{Mode: ByDivider, Divider: 48})
	if c := byDivider.Classify(0, 47.9); c != tuning.Fundamental {
		t.Errorf("below divider -> %s", c)
	}
	if c := byDivider.Classify(0, 48); c != tuning.Harmonic {
		t.Errorf("at divider -> %s", c)
	}
}

func TestSnapperFollowsTable(t *testing.T) {
	table := fakeTones{
		tuning.Fundamental: tones(36, 38),
		tuning.Harmonic:    tones(60, 64, 67),
	}
	s := New(table, Options{Mode: ByDivider, Divider: 48, Tolerance: 1})

	key := Key(0, 64)
	if c := s.Press(key, 0, 64.4); c != tuning.Harmonic {
		t.Fatalf("class = %s", c)
	}
	e, ok := s.Lookup(key)
	if !ok || !e.Harmonic.IsTone() || e.Harmonic.ID != 2 || !e.Fundamental.IsNone() {
		t.Fatalf("lookup = %+v, %v", e, ok)
	}

	// the harmonic table moves away: the held key no longer resolves
	table[tuning.Harmonic] = tones(61, 66)
	if _, ok := s.Lookup(key); ok {
		t.Fatal("expected no match after table change")
	}

	// and back within tolerance of a different tone
	table[tuning.Harmonic] = tones(63.8, 70)
	e, ok = s.Lookup(key)
	if !ok || e.Harmonic.ID != 1 {
		t.Fatalf("lookup after regenerate = %+v, %v", e, ok)
	}

	fkey := Key(0, 37)
	s.Press(fkey, 0, 37)
	e, ok = s.Lookup(fkey)
	if !ok || !e.Fundamental.IsTone() || e.Fundamental.ID != 1 {
		t.Fatalf("fundamental lookup = %+v, %v", e, ok)
	}
}

func TestSnapperBend(t *testing.T) {
	table := fakeTones{tuning.Harmonic: tones(60, 64)}
	s := New(table, Options{Mode: ByDivider, Divider: 0, Tolerance: 0.5})
	key := Key(2, 62)
	s.Press(key, 2, 62)
	if _, ok := s.Lookup(key); ok {
		t.Fatal("62 should be out of tolerance")
	}
	s.Bend(key, 63.7)
	e, ok := s.Lookup(key)
	if !ok || e.Harmonic.ID != 2 {
		t.Fatalf("after bend = %+v, %v", e, ok)
	}
}

func TestKeyDistinguishesChannels(t *testing.T) {
	if Key(0, 60) == Key(1, 60) {
		t.Fatal("same note on two channels must give two keys")
	}
}
