package tuning

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// KeyMap maps input keys 1:1 to tones (the "direct" receive mode)
type KeyMap struct {
	entries map[SourceKey]KeyEntry
}

// NewKeyMap returns an empty key map
func NewKeyMap() *KeyMap {
	return &KeyMap{entries: make(map[SourceKey]KeyEntry)}
}

// DefaultKeyMap lays the table out on a keyboard: one key per fundamental
// starting at the first fundamental's note, then the harmonics in ascending
// id order, then the subharmonics, then the Piper trigger.
func DefaultKeyMap(opts TableOptions) *KeyMap {
	km := NewKeyMap()
	key := SourceKey(opts.FirstNote)
	for i := 1; i <= opts.Fundamentals; i++ {
		km.Set(key, KeyEntry{Fundamental: ToneRef(ToneID(i))})
		key++
	}
	for n := 1; n <= opts.Harmonics; n++ {
		km.Set(key, KeyEntry{Harmonic: ToneRef(ToneID(n))})
		key++
	}
	for n := 2; n <= opts.Subharmonics; n++ {
		km.Set(key, KeyEntry{Harmonic: ToneRef(ToneID(-n))})
		key++
	}
	km.Set(key, KeyEntry{Harmonic: PiperRef()})
	return km
}

// Lookup returns the entry for key
func (km *KeyMap) Lookup(key SourceKey) (KeyEntry, bool) {
	e, ok := km.entries[key]
	return e, ok
}

// Set maps key to e; an entry with neither slot set removes the key
func (km *KeyMap) Set(key SourceKey, e KeyEntry) {
	if e.Fundamental.IsNone() && e.Harmonic.IsNone() {
		delete(km.entries, key)
		return
	}
	km.entries[key] = e
}

// Len returns the number of mapped keys
func (km *KeyMap) Len() int {
	return len(km.entries)
}

// Keys returns the mapped keys in ascending order
func (km *KeyMap) Keys() []SourceKey {
	keys := make([]SourceKey, 0, len(km.entries))
	for k := range km.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// On-disk representation
type keyMapFile struct {
	Keys []keyFileEntry `yaml:"keys"`
}

type keyFileEntry struct {
	Key         int  `yaml:"key"`
	Fundamental *int `yaml:"fundamental,omitempty"`
	Harmonic    *int `yaml:"harmonic,omitempty"`
	Piper       bool `yaml:"piper,omitempty"`
}

// LoadKeyMap reads a YAML key map file
func LoadKeyMap(path string) (*KeyMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	km, err := ParseKeyMap(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return km, nil
}

// ParseKeyMap decodes a YAML key map
func ParseKeyMap(data []byte) (*KeyMap, error) {
	var f keyMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse key map: %w", err)
	}

	km := NewKeyMap()
	for i, k := range f.Keys {
		if k.Key < 0 {
			return nil, fmt.Errorf("entry %d: negative key %d", i, k.Key)
		}
		if _, dup := km.entries[SourceKey(k.Key)]; dup {
			return nil, fmt.Errorf("entry %d: key %d mapped twice", i, k.Key)
		}

		var e KeyEntry
		if k.Fundamental != nil {
			e.Fundamental = ToneRef(ToneID(*k.Fundamental))
		}
		switch {
		case k.Piper && k.Harmonic != nil:
			return nil, fmt.Errorf("entry %d: key %d is both a harmonic and the piper trigger", i, k.Key)
		case k.Piper:
			e.Harmonic = PiperRef()
		case k.Harmonic != nil:
			if *k.Harmonic == 0 {
				return nil, fmt.Errorf("entry %d: harmonic 0 is not a tone (use piper: true)", i)
			}
			e.Harmonic = ToneRef(ToneID(*k.Harmonic))
		}
		if e.Fundamental.IsNone() && e.Harmonic.IsNone() {
			return nil, fmt.Errorf("entry %d: key %d maps to nothing", i, k.Key)
		}
		km.entries[SourceKey(k.Key)] = e
	}
	return km, nil
}

// Marshal encodes the key map as YAML, keys ascending
func (km *KeyMap) Marshal() ([]byte, error) {
	var f keyMapFile
	for _, key := range km.Keys() {
		e := km.entries[key]
		entry := keyFileEntry{Key: int(key)}
		if e.Fundamental.IsTone() {
			id := int(e.Fundamental.ID)
			entry.Fundamental = &id
		}
		switch e.Harmonic.Kind {
		case RefTone:
			id := int(e.Harmonic.ID)
			entry.Harmonic = &id
		case RefPiper:
			entry.Piper = true
		}
		f.Keys = append(f.Keys, entry)
	}
	return yaml.Marshal(&f)
}
