package driver

import "sync/atomic"

// Flag carries a resize notification from the windowing side to the driver.
// The window only ever calls Set and the driver only ever calls Take.
type Flag struct {
	pending atomic.Bool
}

func (f *Flag) Set() {
	f.pending.Store(true)
}

// Take reports whether the flag was set and clears it.
func (f *Flag) Take() bool {
	return f.pending.Swap(false)
}
