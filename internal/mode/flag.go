package mode

import "sync/atomic"

// Flag is a process-wide atomic boolean, used for the tracing on/off
// toggle that an external log/trace filter may consult. Same lock-free
// cell strategy as Register, specialised to a single bit.
type Flag struct {
	v atomic.Bool
}

// NewFlag returns a Flag initialised to the given value.
func NewFlag(initial bool) *Flag {
	f := &Flag{}
	f.v.Store(initial)
	return f
}

// Load returns the current value.
func (f *Flag) Load() bool {
	return f.v.Load()
}

// Store sets the current value.
func (f *Flag) Store(v bool) {
	f.v.Store(v)
}
