// Package display controls the power and backlight of the single physical
// display attached to the clock.
//
// Backends hide how the display is driven: an HDMI monitor via vcgencmd, the
// official touchscreen via sysfs, or nothing at all on a development host.
// Port serializes every backend call behind one mutex so the sensor goroutine
// and interactive callers can share the display.
package display

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/display-sensor/internal/logic"
)

// Kind names a display backend.
type Kind string

const (
	KindAuto  Kind = "auto"
	KindHDMI  Kind = "hdmi"
	KindPanel Kind = "panel"
	KindNone  Kind = "none"
)

// ParseKind maps a configuration value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindHDMI, KindPanel, KindNone:
		return k, nil
	default:
		return "", fmt.Errorf("unknown display kind %q", s)
	}
}

// ErrUnsupported is returned by backends that cannot perform an operation,
// such as brightness on an HDMI monitor.
var ErrUnsupported = errors.New("display: operation not supported")

// Brightness limits for the backlight.
const (
	MinBrightness = 0
	MaxBrightness = 255
)

// Backend drives one kind of display. Implementations need not be safe for
// concurrent use; Port serializes access.
type Backend interface {
	Kind() Kind
	SetPower(on bool) error
	SetBrightness(level int) error
	PowerState() (logic.PowerState, error)
}

// ClampBrightness limits level to the valid backlight range.
func ClampBrightness(level int) int {
	if level < MinBrightness {
		return MinBrightness
	}
	if level > MaxBrightness {
		return MaxBrightness
	}
	return level
}
