package display

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweeney/display-sensor/internal/logic"
)

// HDMI drives an HDMI monitor through the firmware's vcgencmd tool.
//
//	vcgencmd display_power 0|1   set power
//	vcgencmd display_power       prints display_power=0|1
type HDMI struct {
	runner Runner
}

// NewHDMI creates an HDMI backend. A nil runner uses ExecRunner.
func NewHDMI(runner Runner) *HDMI {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &HDMI{runner: runner}
}

// Kind returns KindHDMI.
func (h *HDMI) Kind() Kind { return KindHDMI }

// SetPower switches the HDMI output.
func (h *HDMI) SetPower(on bool) error {
	arg := "0"
	if on {
		arg = "1"
	}
	if _, err := h.runner.Run(context.Background(), "vcgencmd", "display_power", arg); err != nil {
		return fmt.Errorf("hdmi display_power %s: %w", arg, err)
	}
	return nil
}

// SetBrightness is not available over HDMI.
func (h *HDMI) SetBrightness(int) error {
	return ErrUnsupported
}

// PowerState asks the firmware whether the HDMI output is powered.
func (h *HDMI) PowerState() (logic.PowerState, error) {
	out, err := h.runner.Run(context.Background(), "vcgencmd", "display_power")
	if err != nil {
		return logic.PowerUnknown, fmt.Errorf("hdmi query: %w", err)
	}
	return parseDisplayPower(string(out))
}

func parseDisplayPower(out string) (logic.PowerState, error) {
	out = strings.TrimSpace(out)
	_, value, ok := strings.Cut(out, "=")
	if !ok {
		return logic.PowerUnknown, fmt.Errorf("unexpected vcgencmd output %q", out)
	}
	switch strings.TrimSpace(value) {
	case "1":
		return logic.PowerOn, nil
	case "0":
		return logic.PowerOff, nil
	default:
		// -1 is printed when the display id is invalid.
		return logic.PowerUnknown, fmt.Errorf("unexpected vcgencmd output %q", out)
	}
}
