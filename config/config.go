package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"overtone/alloc"
	"overtone/midi"
	"overtone/tuning"
)

// ErrInvalid is wrapped by every Validate failure
var ErrInvalid = errors.New("invalid config")

// MaxDelayMS is the largest per-class send delay accepted
const MaxDelayMS = 20

// ReceiveMode selects how input notes reach the router
type ReceiveMode string

const (
	ModeDirect      ReceiveMode = "direct"       // 1:1 key map
	ModeSnapChannel ReceiveMode = "snap-channel" // snap, fundamentals on one input channel
	ModeSnapDivider ReceiveMode = "snap-divider" // snap, fundamentals below a note divider
)

// Modes lists the receive modes in cycling order
var Modes = []ReceiveMode{ModeDirect, ModeSnapChannel, ModeSnapDivider}

// InputConfig selects the keyboard input
type InputConfig struct {
	PortName  string `json:"portName,omitempty"`  // prefix match, empty opens every input
	BendRange int    `json:"bendRange,omitempty"` // semitones of the controller's bend wheel
}

// ReceiveConfig configures the receive mode
type ReceiveConfig struct {
	Mode               ReceiveMode `json:"mode"`
	Tolerance          float64     `json:"tolerance"`
	FundamentalChannel int         `json:"fundamentalChannel"`
	Divider            float64     `json:"divider"`
}

// ClassOutput is the output setup of one tone class on a port
type ClassOutput struct {
	Channels  []int `json:"channels"`
	BendRange int   `json:"bendRange"`
	DelayMS   int   `json:"delayMs,omitempty"`
}

// OutputConfig defines a saved output port
type OutputConfig struct {
	PortName    string      `json:"portName"`
	AutoSelect  bool        `json:"autoSelect"`
	Fundamental ClassOutput `json:"fundamental"`
	Harmonic    ClassOutput `json:"harmonic"`
}

// TuningConfig configures the tone table and key map
type TuningConfig struct {
	KeyMapPath   string  `json:"keyMapPath,omitempty"`
	FirstNote    float64 `json:"firstNote"`
	Fundamentals int     `json:"fundamentals"`
	Harmonics    int     `json:"harmonics"`
	Subharmonics int     `json:"subharmonics"`
}

// PiperConfig configures the step replayer
type PiperConfig struct {
	Length int `json:"length"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	PalettePath string `json:"palettePath,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Input   InputConfig    `json:"input"`
	Receive ReceiveConfig  `json:"receive"`
	Outputs []OutputConfig `json:"outputs,omitempty"`
	Tuning  TuningConfig   `json:"tuning"`
	Piper   PiperConfig    `json:"piper"`
	UI      UIConfig       `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	table := tuning.DefaultTableOptions()
	return &Config{
		Input: InputConfig{BendRange: 2},
		Receive: ReceiveConfig{
			Mode:      ModeDirect,
			Tolerance: 0.5,
			Divider:   48,
		},
		Tuning: TuningConfig{
			FirstNote:    table.FirstNote,
			Fundamentals: table.Fundamentals,
			Harmonics:    table.Harmonics,
			Subharmonics: table.Subharmonics,
		},
		Piper: PiperConfig{Length: 8},
	}
}

// DefaultOutput returns the output setup used for a port seen for the first
// time: fundamentals on channel 1, harmonics on 2-16
func DefaultOutput(portName string) OutputConfig {
	pc := alloc.DefaultPortConfig()
	out := OutputConfig{PortName: portName}
	out.Fundamental = classOutput(pc.Classes[tuning.Fundamental])
	out.Harmonic = classOutput(pc.Classes[tuning.Harmonic])
	return out
}

func classOutput(cc alloc.ClassConfig) ClassOutput {
	chans := make([]int, len(cc.Channels))
	for i, ch := range cc.Channels {
		chans[i] = int(ch)
	}
	return ClassOutput{Channels: chans, BendRange: cc.BendRange, DelayMS: int(cc.Delay / time.Millisecond)}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "overtone"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields the defaults.
// Fields absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges the engine relies on
func (c *Config) Validate() error {
	switch c.Receive.Mode {
	case ModeDirect, ModeSnapChannel, ModeSnapDivider:
	default:
		return fmt.Errorf("%w: receive mode %q", ErrInvalid, c.Receive.Mode)
	}
	if c.Receive.Tolerance < 0 {
		return fmt.Errorf("%w: negative tolerance %v", ErrInvalid, c.Receive.Tolerance)
	}
	if c.Receive.FundamentalChannel < 0 || c.Receive.FundamentalChannel >= midi.NumChannels {
		return fmt.Errorf("%w: fundamental channel %d", ErrInvalid, c.Receive.FundamentalChannel)
	}
	if c.Input.BendRange < 0 || c.Input.BendRange > 127 {
		return fmt.Errorf("%w: input bend range %d", ErrInvalid, c.Input.BendRange)
	}
	if c.Tuning.Fundamentals < 1 || c.Tuning.Harmonics < 1 || c.Tuning.Subharmonics < 0 {
		return fmt.Errorf("%w: tone table sizes %d/%d/%d", ErrInvalid,
			c.Tuning.Fundamentals, c.Tuning.Harmonics, c.Tuning.Subharmonics)
	}
	if c.Piper.Length < 1 {
		return fmt.Errorf("%w: piper length %d", ErrInvalid, c.Piper.Length)
	}

	seen := make(map[string]bool)
	for _, out := range c.Outputs {
		if out.PortName == "" {
			return fmt.Errorf("%w: output without port name", ErrInvalid)
		}
		if seen[out.PortName] {
			return fmt.Errorf("%w: output %q listed twice", ErrInvalid, out.PortName)
		}
		seen[out.PortName] = true
		if err := out.validate(); err != nil {
			return fmt.Errorf("%w: output %q: %v", ErrInvalid, out.PortName, err)
		}
	}
	return nil
}

func (o OutputConfig) validate() error {
	used := make(map[int]string)
	for _, class := range []tuning.Class{tuning.Fundamental, tuning.Harmonic} {
		co := o.Class(class)
		if co.BendRange < 1 || co.BendRange > 127 {
			return fmt.Errorf("%s bend range %d", class, co.BendRange)
		}
		if co.DelayMS < 0 || co.DelayMS > MaxDelayMS {
			return fmt.Errorf("%s delay %dms outside 0-%d", class, co.DelayMS, MaxDelayMS)
		}
		for _, ch := range co.Channels {
			if ch < 0 || ch >= midi.NumChannels {
				return fmt.Errorf("%s channel %d", class, ch)
			}
			if other, ok := used[ch]; ok {
				return fmt.Errorf("channel %d used by %s and %s", ch, other, class)
			}
			used[ch] = class.String()
		}
	}
	return nil
}

// Class returns the setup for one tone class
func (o OutputConfig) Class(class tuning.Class) ClassOutput {
	if class == tuning.Fundamental {
		return o.Fundamental
	}
	return o.Harmonic
}

// SetClass replaces the setup for one tone class
func (o *OutputConfig) SetClass(class tuning.Class, co ClassOutput) {
	if class == tuning.Fundamental {
		o.Fundamental = co
	} else {
		o.Harmonic = co
	}
}

// PortConfig converts the output to the allocator's form
func (o OutputConfig) PortConfig() alloc.PortConfig {
	var pc alloc.PortConfig
	for _, class := range []tuning.Class{tuning.Fundamental, tuning.Harmonic} {
		co := o.Class(class)
		chans := make([]uint8, len(co.Channels))
		for i, ch := range co.Channels {
			chans[i] = uint8(ch)
		}
		pc.Classes[class] = alloc.ClassConfig{
			Channels:  chans,
			BendRange: co.BendRange,
			Delay:     time.Duration(co.DelayMS) * time.Millisecond,
		}
	}
	return pc
}

// TableOptions converts the tuning section for tuning.NewTable
func (c *Config) TableOptions() tuning.TableOptions {
	return tuning.TableOptions{
		FirstNote:    c.Tuning.FirstNote,
		Fundamentals: c.Tuning.Fundamentals,
		Harmonics:    c.Tuning.Harmonics,
		Subharmonics: c.Tuning.Subharmonics,
	}
}

// FindOutput finds an output config by port name
func (c *Config) FindOutput(portName string) *OutputConfig {
	for i := range c.Outputs {
		if c.Outputs[i].PortName == portName {
			return &c.Outputs[i]
		}
	}
	return nil
}

// AddOutput adds or updates an output config
func (c *Config) AddOutput(out OutputConfig) {
	for i := range c.Outputs {
		if c.Outputs[i].PortName == out.PortName {
			c.Outputs[i] = out
			return
		}
	}
	c.Outputs = append(c.Outputs, out)
}

// AutoSelectOutputs returns outputs with autoSelect enabled
func (c *Config) AutoSelectOutputs() []OutputConfig {
	var result []OutputConfig
	for _, out := range c.Outputs {
		if out.AutoSelect {
			result = append(result, out)
		}
	}
	return result
}

// NextMode returns the receive mode after m in cycling order
func NextMode(m ReceiveMode) ReceiveMode {
	for i, mode := range Modes {
		if mode == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeDirect
}
