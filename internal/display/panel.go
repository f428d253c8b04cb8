package display

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/display-sensor/internal/logic"
)

// DefaultSysfsRoot is where the kernel exposes backlight devices.
const DefaultSysfsRoot = "/sys/class/backlight"

// DefaultBacklightDevice is the official Raspberry Pi 7" touchscreen.
const DefaultBacklightDevice = "rpi_backlight"

// Panel drives an integrated panel through the sysfs backlight class.
// bl_power follows FB_BLANK semantics: 0 is unblanked (on), anything else is off.
type Panel struct {
	dir string
}

// NewPanel creates a panel backend for device under root.
// Empty arguments select the defaults.
func NewPanel(root, device string) *Panel {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if device == "" {
		device = DefaultBacklightDevice
	}
	return &Panel{dir: filepath.Join(root, device)}
}

// Kind returns KindPanel.
func (p *Panel) Kind() Kind { return KindPanel }

// Dir returns the sysfs directory of the backlight device.
func (p *Panel) Dir() string { return p.dir }

// SetPower blanks or unblanks the backlight.
func (p *Panel) SetPower(on bool) error {
	value := "1"
	if on {
		value = "0"
	}
	if err := p.write("bl_power", value); err != nil {
		return fmt.Errorf("panel bl_power: %w", err)
	}
	return nil
}

// SetBrightness writes the backlight brightness.
func (p *Panel) SetBrightness(level int) error {
	if err := p.write("brightness", strconv.Itoa(ClampBrightness(level))); err != nil {
		return fmt.Errorf("panel brightness: %w", err)
	}
	return nil
}

// PowerState reads bl_power.
func (p *Panel) PowerState() (logic.PowerState, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, "bl_power"))
	if err != nil {
		return logic.PowerUnknown, fmt.Errorf("panel query: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return logic.PowerUnknown, fmt.Errorf("panel query: parse bl_power %q: %w", data, err)
	}
	if v == 0 {
		return logic.PowerOn, nil
	}
	return logic.PowerOff, nil
}

func (p *Panel) write(name, value string) error {
	// sysfs attributes already exist; O_TRUNC without O_CREATE keeps a
	// missing device from silently creating a regular file.
	f, err := os.OpenFile(filepath.Join(p.dir, name), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
