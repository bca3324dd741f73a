package tuning

import (
	"math"
	"strings"
	"testing"
)

func TestHzToNote(t *testing.T) {
	tests := []struct {
		hz   float64
		note float64
	}{
		{440, 69},
		{880, 81},
		{261.6255653005986, 60},
	}
	for _, tt := range tests {
		if got := HzToNote(tt.hz); math.Abs(got-tt.note) > 1e-9 {
			t.Errorf("HzToNote(%v) = %v, want %v", tt.hz, got, tt.note)
		}
		if got := NoteToHz(tt.note); math.Abs(got-tt.hz) > 1e-6 {
			t.Errorf("NoteToHz(%v) = %v, want %v", tt.note, got, tt.hz)
		}
	}
}

func TestTableRegenerate(t *testing.T) {
	table := NewTable(TableOptions{FirstNote: 45, Fundamentals: 3, Harmonics: 4, Subharmonics: 2})

	f, ok := table.Lookup(Fundamental, 1)
	if !ok || math.Abs(f.Hz-110) > 1e-9 {
		t.Fatalf("fundamental 1 = %+v, %v; want 110 Hz", f, ok)
	}
	if table.FundamentalHz() != f.Hz {
		t.Errorf("harmonics not generated for first fundamental: %v", table.FundamentalHz())
	}

	table.Regenerate(100)
	h3, ok := table.Lookup(Harmonic, 3)
	if !ok || h3.Hz != 300 {
		t.Fatalf("harmonic 3 = %+v, %v; want 300 Hz", h3, ok)
	}
	sub, ok := table.Lookup(Harmonic, -2)
	if !ok || sub.Hz != 50 {
		t.Fatalf("subharmonic 2 = %+v, %v; want 50 Hz", sub, ok)
	}
	if _, ok := table.Lookup(Harmonic, 0); ok {
		t.Error("harmonic id 0 must not exist")
	}

	tones := table.Tones(Harmonic)
	if len(tones) != 5 {
		t.Fatalf("expected 5 harmonic tones, got %d", len(tones))
	}
	for i := 1; i < len(tones); i++ {
		if tones[i].Note < tones[i-1].Note {
			t.Fatalf("tones not in ascending note order: %+v", tones)
		}
	}
}

func TestDefaultKeyMap(t *testing.T) {
	opts := DefaultTableOptions()
	km := DefaultKeyMap(opts)

	e, ok := km.Lookup(36)
	if !ok || !e.Fundamental.IsTone() || e.Fundamental.ID != 1 {
		t.Fatalf("key 36 = %+v, %v", e, ok)
	}
	e, ok = km.Lookup(48)
	if !ok || !e.Harmonic.IsTone() || e.Harmonic.ID != 1 {
		t.Fatalf("key 48 = %+v, %v", e, ok)
	}
	last := km.Keys()[km.Len()-1]
	e, _ = km.Lookup(last)
	if !e.Harmonic.IsPiper() {
		t.Fatalf("last key %d should be the piper trigger, got %+v", last, e)
	}
}

func TestParseKeyMap(t *testing.T) {
	src := `
keys:
  - key: 36
    fundamental: 5
  - key: 60
    harmonic: 3
  - key: 61
    harmonic: -2
  - key: 62
    fundamental: 7
    harmonic: 1
  - key: 96
    piper: true
`
	km, err := ParseKeyMap([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if km.Len() != 5 {
		t.Fatalf("expected 5 keys, got %d", km.Len())
	}
	e, _ := km.Lookup(62)
	if e.Fundamental.ID != 7 || e.Harmonic.ID != 1 || !e.Harmonic.IsTone() {
		t.Errorf("key 62 = %+v", e)
	}
	e, _ = km.Lookup(96)
	if !e.Harmonic.IsPiper() || !e.Fundamental.IsNone() {
		t.Errorf("key 96 = %+v", e)
	}

	out, err := km.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseKeyMap(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	for _, k := range km.Keys() {
		a, _ := km.Lookup(k)
		b, _ := again.Lookup(k)
		if a != b {
			t.Errorf("key %d changed across marshal: %+v != %+v", k, a, b)
		}
	}
}

func TestParseKeyMapErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"harmonic zero", "keys:\n  - key: 1\n    harmonic: 0\n", "not a tone"},
		{"piper and harmonic", "keys:\n  - key: 1\n    harmonic: 2\n    piper: true\n", "both"},
		{"duplicate", "keys:\n  - key: 1\n    harmonic: 2\n  - key: 1\n    harmonic: 3\n", "twice"},
		{"empty", "keys:\n  - key: 4\n", "nothing"},
		{"syntax", "keys: [", "parse key map"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyMap([]byte(tt.src))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
