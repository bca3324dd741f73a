package tuning

import (
	"sort"
)

// Table is the reference tone table. Fundamentals are fixed equal-tempered
// tones; harmonics are integer multiples (positive ids) and integer divisions
// (negative ids) of the current fundamental and are rebuilt by Regenerate.
type Table struct {
	fundamentals []Tone
	harmonics    []Tone
	byID         [NumClasses]map[ToneID]int

	numHarmonics    int
	numSubharmonics int
	fundamentalHz   float64
}

// TableOptions configures NewTable
type TableOptions struct {
	FirstNote    float64 // note number of fundamental id 1
	Fundamentals int     // number of fundamental tones, one semitone apart
	Harmonics    int     // ids 1..Harmonics
	Subharmonics int     // ids -2..-Subharmonics
	InitialHz    float64 // harmonics are generated for this until the first Regenerate
}

// DefaultTableOptions covers a C2 octave of fundamentals and 24 harmonics
func DefaultTableOptions() TableOptions {
	return TableOptions{
		FirstNote:    36,
		Fundamentals: 12,
		Harmonics:    24,
		Subharmonics: 12,
	}
}

// NewTable builds a table from opts
func NewTable(opts TableOptions) *Table {
	t := &Table{
		numHarmonics:    opts.Harmonics,
		numSubharmonics: opts.Subharmonics,
	}
	t.fundamentals = make([]Tone, 0, opts.Fundamentals)
	for i := 0; i < opts.Fundamentals; i++ {
		note := opts.FirstNote + float64(i)
		t.fundamentals = append(t.fundamentals, Tone{ID: ToneID(i + 1), Hz: NoteToHz(note), Note: note})
	}
	t.byID[Fundamental] = index(t.fundamentals)

	hz := opts.InitialHz
	if hz <= 0 && len(t.fundamentals) > 0 {
		hz = t.fundamentals[0].Hz
	}
	t.Regenerate(hz)
	return t
}

// Regenerate rebuilds the harmonic class for a new fundamental frequency
func (t *Table) Regenerate(fundamentalHz float64) {
	t.fundamentalHz = fundamentalHz
	t.harmonics = make([]Tone, 0, t.numHarmonics+t.numSubharmonics)
	if fundamentalHz <= 0 {
		t.byID[Harmonic] = index(t.harmonics)
		return
	}
	for n := 1; n <= t.numHarmonics; n++ {
		hz := fundamentalHz * float64(n)
		t.harmonics = append(t.harmonics, Tone{ID: ToneID(n), Hz: hz, Note: HzToNote(hz)})
	}
	for n := 2; n <= t.numSubharmonics; n++ {
		hz := fundamentalHz / float64(n)
		t.harmonics = append(t.harmonics, Tone{ID: ToneID(-n), Hz: hz, Note: HzToNote(hz)})
	}
	sort.SliceStable(t.harmonics, func(i, j int) bool {
		return t.harmonics[i].Note < t.harmonics[j].Note
	})
	t.byID[Harmonic] = index(t.harmonics)
}

// FundamentalHz returns the frequency the harmonics were last generated for
func (t *Table) FundamentalHz() float64 {
	return t.fundamentalHz
}

// Lookup returns the tone with id in class
func (t *Table) Lookup(class Class, id ToneID) (Tone, bool) {
	if class < 0 || int(class) >= NumClasses {
		return Tone{}, false
	}
	i, ok := t.byID[class][id]
	if !ok {
		return Tone{}, false
	}
	return t.tones(class)[i], true
}

// Tones returns the tones of class in ascending note order. The slice must not be modified.
func (t *Table) Tones(class Class) []Tone {
	return t.tones(class)
}

func (t *Table) tones(class Class) []Tone {
	if class == Fundamental {
		return t.fundamentals
	}
	return t.harmonics
}

func index(tones []Tone) map[ToneID]int {
	m := make(map[ToneID]int, len(tones))
	for i, tn := range tones {
		m[tn.ID] = i
	}
	return m
}
