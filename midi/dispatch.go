package midi

import (
	"sync"
	"time"

	"overtone/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// SendFunc writes one message to an output port
type SendFunc func(msg gomidi.Message) error

// Dispatcher delays messages for slow hardware while keeping the order of
// messages on each channel. Every channel has its own FIFO; a message queued
// behind a later-due message waits for it. Cancel voids everything pending.
type Dispatcher struct {
	name string
	send SendFunc

	mu    sync.Mutex
	lanes [NumChannels]lane
	gen   uint64 // bumped by Cancel/Flush so stale timers do nothing
}

type lane struct {
	queue []pending
	timer *time.Timer
}

type pending struct {
	msg gomidi.Message
	due time.Time
}

// NewDispatcher wraps send for the port called name
func NewDispatcher(name string, send SendFunc) *Dispatcher {
	return &Dispatcher{name: name, send: send}
}

// Name returns the port name
func (d *Dispatcher) Name() string {
	return d.name
}

// Send writes msg on channel after delay. With no delay and nothing pending
// on the channel the message is written before Send returns.
func (d *Dispatcher) Send(channel uint8, msg gomidi.Message, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := channel & 0x0F
	l := &d.lanes[ch]
	if delay <= 0 && len(l.queue) == 0 {
		d.write(msg)
		return
	}
	l.queue = append(l.queue, pending{msg: msg, due: time.Now().Add(delay)})
	if len(l.queue) == 1 {
		d.arm(ch)
	}
}

// arm starts the timer for the head of a lane; mu must be held
func (d *Dispatcher) arm(ch uint8) {
	l := &d.lanes[ch]
	gen := d.gen
	l.timer = time.AfterFunc(time.Until(l.queue[0].due), func() {
		d.fire(ch, gen)
	})
}

func (d *Dispatcher) fire(ch uint8, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen {
		return
	}
	l := &d.lanes[ch]
	l.timer = nil
	now := time.Now()
	for len(l.queue) > 0 && !l.queue[0].due.After(now) {
		d.write(l.queue[0].msg)
		l.queue = l.queue[1:]
	}
	if len(l.queue) > 0 {
		d.arm(ch)
	}
}

// Cancel drops every pending message except note-offs, which are written
// at once in queue order, and returns how many messages were dropped. A
// queued note-off may belong to a note-on already on the wire.
func (d *Dispatcher) Cancel() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	n := 0
	for ch := range d.lanes {
		l := &d.lanes[ch]
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		for _, p := range l.queue {
			if isNoteOff(p.msg) {
				d.write(p.msg)
				continue
			}
			n++
		}
		l.queue = nil
	}
	if n > 0 {
		debug.Log("dispatch", "port=%s canceled %d pending", d.name, n)
	}
	return n
}

// Flush writes every pending message now, channel by channel
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	for ch := range d.lanes {
		l := &d.lanes[ch]
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		for _, p := range l.queue {
			d.write(p.msg)
		}
		l.queue = nil
	}
}

// Pending returns the number of queued messages
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for ch := range d.lanes {
		n += len(d.lanes[ch].queue)
	}
	return n
}

func isNoteOff(msg gomidi.Message) bool {
	var channel, note uint8
	return msg.GetNoteEnd(&channel, &note)
}

// write sends one message; mu must be held
func (d *Dispatcher) write(msg gomidi.Message) {
	if d.send == nil {
		return
	}
	if err := d.send(msg); err != nil {
		debug.Log("dispatch", "port=%s send %s: %v", d.name, msg, err)
	}
}
