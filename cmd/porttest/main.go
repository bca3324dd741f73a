package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"overtone/alloc"
	"overtone/debug"
	"overtone/midi"
	"overtone/tuning"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "bend":
		if len(os.Args) < 3 {
			usage()
			return
		}
		bendTest(os.Args[2], os.Args[3:])
	case "monitor":
		monitor()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI port tests")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                  - List all MIDI ports")
	fmt.Println("  poll                  - Watch for device changes")
	fmt.Println("  bend <port> [range]   - Play microtonal notes through the allocator")
	fmt.Println("  monitor               - Print notes and bends from every input")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ins, outs, ok := midi.ListPorts(3 * time.Second)
	if !ok {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager("")
	go dm.Run(ctx)

	for evt := range dm.Events() {
		stamp := time.Now().Format("15:04:05")
		switch evt.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] input connected: %s (%d open)\n", stamp, evt.ID, len(dm.Controllers()))
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] input disconnected: %s\n", stamp, evt.ID)
		case midi.DevicePortsChanged:
			fmt.Printf("[%s] outputs: %v\n", stamp, evt.Outputs)
		}
	}
}

// bendTest plays a quarter-tone scale on the harmonic class of a port, then
// a chord wider than the channel pool to exercise stealing
func bendTest(portName string, args []string) {
	bendRange := 2
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("Bad range %q\n", args[0])
			return
		}
		bendRange = n
	}

	port, ok := midi.FindOutPort(portName)
	if !ok {
		fmt.Printf("Output %q not found\n", portName)
		return
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	debug.SetOutput(os.Stdout)
	defer debug.Disable()

	bank := alloc.NewBank()
	cfg := alloc.DefaultPortConfig()
	cfg.Classes[tuning.Harmonic].Channels = []uint8{1, 2, 3, 4}
	bank.Select(portName, send, cfg)
	if err := bank.SetBendRange(portName, tuning.Harmonic, bendRange); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("Quarter-tone scale from middle C...")
	for i := 0; i <= 24; i++ {
		key := tuning.SourceKey(i)
		bank.NoteOn(tuning.Harmonic, key, tuning.ToneID(i), 60+float64(i)*0.5, 100)
		time.Sleep(250 * time.Millisecond)
		bank.NoteOff(tuning.Harmonic, key)
	}

	fmt.Println("Six-note chord on four channels (two steals)...")
	for i, note := range []float64{48, 55.02, 60, 63.86, 67.02, 69.69} {
		bank.NoteOn(tuning.Harmonic, tuning.SourceKey(100+i), tuning.ToneID(i+1), note, 90)
		time.Sleep(150 * time.Millisecond)
	}
	time.Sleep(time.Second)

	bank.Panic()
	if err := bank.Deselect(portName); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	fmt.Println("Done!")
}

func monitor() {
	fmt.Println("Printing input events. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager("")
	go dm.Run(ctx)

	for evt := range dm.Events() {
		if evt.Type != midi.DeviceConnected {
			continue
		}
		fmt.Printf("listening on %s\n", evt.ID)
		go func(c midi.Controller) {
			for in := range c.Events() {
				switch in.Kind {
				case midi.InputNoteOn:
					fmt.Printf("%s ch%d on  %d vel %d\n", c.ID(), in.Channel, in.Note, in.Velocity)
				case midi.InputNoteOff:
					fmt.Printf("%s ch%d off %d\n", c.ID(), in.Channel, in.Note)
				case midi.InputBend:
					fmt.Printf("%s ch%d bend %+d\n", c.ID(), in.Channel, in.Bend)
				}
			}
		}(evt.Controller)
	}
}
