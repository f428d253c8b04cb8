// Package gpio provides the PIR motion sensor input with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Reader reads the motion sensor line.
type Reader interface {
	// Read returns true while the sensor asserts motion.
	// The PIR output is active-high: raw 1 = motion, raw 0 = no motion.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// ErrNotSupported is returned where the GPIO character device is unavailable.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Defaults for the Adafruit PIR sensor wired to board pin 12.
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 18 // BCM numbering
)
