package display

import (
	"sync"

	"github.com/sweeney/display-sensor/internal/logic"
)

// FakeBackend records commands for test assertions.
// It is safe for concurrent use so tests can race callers against the port.
type FakeBackend struct {
	mu sync.Mutex

	// State is returned by PowerState and updated by successful SetPower calls.
	State logic.PowerState

	// Level is the last brightness written.
	Level int

	// NoBrightness makes SetBrightness return ErrUnsupported.
	NoBrightness bool

	// PowerError, BrightnessError and QueryError are returned when set.
	PowerError      error
	BrightnessError error
	QueryError      error

	OnCalls         int
	OffCalls        int
	BrightnessCalls int
	QueryCalls      int
}

// NewFakeBackend creates a FakeBackend reporting state.
func NewFakeBackend(state logic.PowerState) *FakeBackend {
	return &FakeBackend{State: state}
}

// Kind returns KindNone.
func (f *FakeBackend) Kind() Kind { return KindNone }

// SetPower records the call.
func (f *FakeBackend) SetPower(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if on {
		f.OnCalls++
	} else {
		f.OffCalls++
	}
	if f.PowerError != nil {
		return f.PowerError
	}
	if on {
		f.State = logic.PowerOn
	} else {
		f.State = logic.PowerOff
	}
	return nil
}

// SetBrightness records the call.
func (f *FakeBackend) SetBrightness(level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.BrightnessCalls++
	if f.NoBrightness {
		return ErrUnsupported
	}
	if f.BrightnessError != nil {
		return f.BrightnessError
	}
	f.Level = level
	return nil
}

// PowerState returns State.
func (f *FakeBackend) PowerState() (logic.PowerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.QueryCalls++
	if f.QueryError != nil {
		return logic.PowerUnknown, f.QueryError
	}
	return f.State, nil
}

// Calls returns the number of power commands, on and off.
func (f *FakeBackend) Calls() (on, off int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.OnCalls, f.OffCalls
}
