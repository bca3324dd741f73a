package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"overtone/config"
	"overtone/debug"
	"overtone/engine"
	"overtone/midi"
	"overtone/theme"
	"overtone/tuning"
	"overtone/tui"
)

func main() {
	configPath := flag.String("config", "", "Config file. Defaults to ~/.config/overtone/config.json.")
	debugFlag := flag.Bool("debug", false, "Write debug.log to the config directory.")
	dumpKeyMap := flag.Bool("dump-keymap", false, "Print the active key map as YAML and exit.")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *debugFlag {
		dir, err := config.ConfigDir()
		if err == nil {
			err = debug.Enable(dir)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	keymap := tuning.DefaultKeyMap(cfg.TableOptions())
	if cfg.Tuning.KeyMapPath != "" {
		if keymap, err = tuning.LoadKeyMap(cfg.Tuning.KeyMapPath); err != nil {
			fmt.Fprintf(os.Stderr, "key map: %v\n", err)
			os.Exit(1)
		}
	}
	if *dumpKeyMap {
		data, err := keymap.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "key map: %v\n", err)
			os.Exit(1)
		}
		if _, err := os.Stdout.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "key map: %v\n", err)
			os.Exit(1)
		}
		return
	}

	palette, err := theme.LoadOrDefault(cfg.UI.PalettePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "palette: %v\n", err)
		palette = theme.Default()
	}
	th := theme.New(palette)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(cfg, keymap, nil)
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager(cfg.Input.PortName)
	go deviceMgr.Run(ctx)

	m := tui.NewModel(eng, deviceMgr, th)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, runErr := p.Run()

	// stop the engine first so every note is released before exit
	cancel()
	<-done

	if err := saveConfig(cfg, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "save config: %v\n", err)
	}
	if runErr != nil {
		fmt.Printf("Error: %v\n", runErr)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func saveConfig(cfg *config.Config, path string) error {
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveFile(path)
}
