package display

import "github.com/sweeney/display-sensor/internal/logic"

// Null is used on hosts without a controllable display, such as a
// development laptop. Commands succeed without doing anything and the
// power state cannot be answered.
type Null struct{}

// Kind returns KindNone.
func (Null) Kind() Kind { return KindNone }

// SetPower does nothing.
func (Null) SetPower(bool) error { return nil }

// SetBrightness does nothing.
func (Null) SetBrightness(int) error { return nil }

// PowerState is always unknown.
func (Null) PowerState() (logic.PowerState, error) {
	return logic.PowerUnknown, ErrUnsupported
}
