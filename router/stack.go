package router

import (
	"slices"

	"overtone/tuning"
)

// fundamental is an entry of the fundamental priority stack
type fundamental struct {
	Hz       float64
	Note     float64
	Key      tuning.SourceKey
	Velocity uint8
	ID       tuning.ToneID
}

// stack holds the pressed fundamentals; the most recent press is on top and
// is the only one sounding. At most one entry per tone id.
type stack struct {
	entries []fundamental
}

func (s *stack) push(f fundamental) {
	s.entries = append(s.entries, f)
}

// top returns the sounding entry
func (s *stack) top() (fundamental, bool) {
	if len(s.entries) == 0 {
		return fundamental{}, false
	}
	return s.entries[len(s.entries)-1], true
}

func (s *stack) findID(id tuning.ToneID) (fundamental, bool) {
	for _, f := range s.entries {
		if f.ID == id {
			return f, true
		}
	}
	return fundamental{}, false
}

// removeKey drops the entry pressed by key
func (s *stack) removeKey(key tuning.SourceKey) (fundamental, bool) {
	for i, f := range s.entries {
		if f.Key == key {
			s.entries = slices.Delete(s.entries, i, i+1)
			return f, true
		}
	}
	return fundamental{}, false
}

func (s *stack) len() int { return len(s.entries) }

func (s *stack) clear() { s.entries = nil }
