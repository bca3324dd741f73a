package engine

import (
	"overtone/debug"
	"overtone/tuning"
)

// synthLog stands in for a local synthesizer and only logs voice changes
type synthLog struct{}

func (synthLog) VoiceOn(hz float64, key tuning.SourceKey, velocity uint8, class tuning.Class) {
	debug.Log("synth", "on  %-11s key=%-5d vel=%-3d %.2fHz", class, key, velocity, hz)
}

func (synthLog) VoiceOff(key tuning.SourceKey, class tuning.Class, panic bool) {
	if panic {
		debug.Log("synth", "off %-11s key=%-5d (panic)", class, key)
		return
	}
	debug.Log("synth", "off %-11s key=%d", class, key)
}
