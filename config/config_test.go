package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"overtone/tuning"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	out := DefaultOutput("synth")
	if !slices.Equal(out.Fundamental.Channels, []int{0}) || len(out.Harmonic.Channels) != 15 {
		t.Fatalf("default output = %+v", out)
	}
	cfg := DefaultConfig()
	cfg.AddOutput(out)
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Receive.Mode != ModeDirect || cfg.Piper.Length != 8 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestSaveLoadKeepsOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Receive.Mode = ModeSnapDivider
	out := DefaultOutput("Surge XT")
	out.AutoSelect = true
	out.Harmonic.DelayMS = 5
	cfg.AddOutput(out)

	if err := cfg.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Receive.Mode != ModeSnapDivider {
		t.Errorf("mode = %q", got.Receive.Mode)
	}
	o := got.FindOutput("Surge XT")
	if o == nil || !o.AutoSelect || o.Harmonic.DelayMS != 5 {
		t.Fatalf("output = %+v", o)
	}
	if n := len(got.AutoSelectOutputs()); n != 1 {
		t.Fatalf("auto select outputs = %d", n)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"receive":{"mode":"snap-channel","fundamentalChannel":9}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Receive.Mode != ModeSnapChannel || cfg.Receive.FundamentalChannel != 9 {
		t.Fatalf("receive = %+v", cfg.Receive)
	}
	if cfg.Tuning.Fundamentals != 12 || cfg.Piper.Length != 8 {
		t.Fatalf("defaults lost: %+v %+v", cfg.Tuning, cfg.Piper)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"receive":{"mode":"telepathy"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"negative tolerance", func(c *Config) { c.Receive.Tolerance = -1 }},
		{"fundamental channel", func(c *Config) { c.Receive.FundamentalChannel = 16 }},
		{"piper length", func(c *Config) { c.Piper.Length = 0 }},
		{"no fundamentals", func(c *Config) { c.Tuning.Fundamentals = 0 }},
		{"unnamed output", func(c *Config) { c.AddOutput(DefaultOutput("")) }},
		{"duplicate output", func(c *Config) {
			c.Outputs = append(c.Outputs, DefaultOutput("a"), DefaultOutput("a"))
		}},
		{"delay too long", func(c *Config) {
			o := DefaultOutput("a")
			o.Harmonic.DelayMS = MaxDelayMS + 1
			c.AddOutput(o)
		}},
		{"bend range zero", func(c *Config) {
			o := DefaultOutput("a")
			o.Fundamental.BendRange = 0
			c.AddOutput(o)
		}},
		{"channel out of range", func(c *Config) {
			o := DefaultOutput("a")
			o.Harmonic.Channels = []int{3, 16}
			c.AddOutput(o)
		}},
		{"channel shared by classes", func(c *Config) {
			o := DefaultOutput("a")
			o.Harmonic.Channels = []int{0, 1}
			c.AddOutput(o)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestPortConfig(t *testing.T) {
	o := DefaultOutput("a")
	o.Harmonic = ClassOutput{Channels: []int{4, 5}, BendRange: 12, DelayMS: 3}
	pc := o.PortConfig()
	h := pc.Classes[tuning.Harmonic]
	if !slices.Equal(h.Channels, []uint8{4, 5}) || h.BendRange != 12 || h.Delay != 3*time.Millisecond {
		t.Fatalf("harmonic = %+v", h)
	}
	if f := pc.Classes[tuning.Fundamental]; !slices.Equal(f.Channels, []uint8{0}) || f.BendRange != 2 {
		t.Fatalf("fundamental = %+v", f)
	}
}

func TestNextMode(t *testing.T) {
	m := ModeDirect
	var seen []ReceiveMode
	for range Modes {
		m = NextMode(m)
		seen = append(seen, m)
	}
	if !slices.Equal(seen, []ReceiveMode{ModeSnapChannel, ModeSnapDivider, ModeDirect}) {
		t.Fatalf("cycle = %v", seen)
	}
}
