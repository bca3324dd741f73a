package midi

// Controller is a MIDI input device played by the user
type Controller interface {
	ID() string

	// Notes and pitch bends in arrival order
	Events() <-chan InputEvent

	Close() error
}
