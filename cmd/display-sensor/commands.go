package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/sweeney/display-sensor/internal/display"
	"github.com/sweeney/display-sensor/internal/gpio"
	"github.com/sweeney/display-sensor/internal/logging"
	"github.com/sweeney/display-sensor/internal/logic"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(12)
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#909090"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15"))
)

// stateView is what the state command prints.
type stateView struct {
	SensorEnabled bool
	Motion        bool
	Pin           int
	Kind          display.Kind
	Power         logic.PowerState
	Brightness    int
}

func renderState(v stateView) string {
	var motion string
	switch {
	case !v.SensorEnabled:
		motion = offStyle.Render("disabled")
	case v.Motion:
		motion = onStyle.Render("MOTION")
	default:
		motion = offStyle.Render("still")
	}

	var power string
	switch v.Power {
	case logic.PowerOn:
		power = onStyle.Render("ON")
	case logic.PowerOff:
		power = offStyle.Render("OFF")
	default:
		power = unknownStyle.Render("UNKNOWN")
	}

	rows := []string{
		labelStyle.Render("Sensor") + motion + fmt.Sprintf(" (pin %d)", v.Pin),
		labelStyle.Render("Display") + power + fmt.Sprintf(" (%s)", v.Kind),
		labelStyle.Render("Brightness") + strconv.Itoa(v.Brightness),
	}
	return strings.Join(rows, "\n")
}

// cliLogger logs warnings and errors to stderr for one-shot commands.
func cliLogger(cmd *cobra.Command) zerolog.Logger {
	lc := logging.DefaultConfig()
	lc.Level = "warn"
	log, _, err := logging.New(lc, cmd.ErrOrStderr())
	if err != nil {
		return zerolog.Nop()
	}
	return log
}

func (a *app) newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current sensor and display state and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.manager.Get()
			log := cliLogger(cmd)

			v := stateView{
				SensorEnabled: cfg.Sensor.Enabled,
				Pin:           cfg.Sensor.Pin,
				Brightness:    cfg.Display.Brightness,
			}
			if cfg.Sensor.Enabled {
				reader, err := gpio.NewRealReader(cfg.Sensor.Chip, cfg.Sensor.Pin)
				if err != nil {
					return fmt.Errorf("init gpio: %w", err)
				}
				defer reader.Close()
				if v.Motion, err = reader.Read(); err != nil {
					return fmt.Errorf("read pir pin: %w", err)
				}
			}

			port := display.NewPort(display.NewBackend(backendOptions(cfg), log), log)
			v.Kind = port.Kind()
			v.Power = port.QueryPowerState()

			fmt.Fprintln(cmd.OutOrStdout(), renderState(v))
			return nil
		},
	}
}

func (a *app) newBrightnessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brightness <0-255>",
		Short: "Set the display backlight brightness",
		Long: `Set the display backlight brightness. Values outside 0..255 are clamped.
HDMI monitors have no backlight control; the value is accepted and ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("brightness must be an integer: %w", err)
			}

			cfg := a.manager.Get()
			log := cliLogger(cmd)
			port := display.NewPort(display.NewBackend(backendOptions(cfg), log), log)

			stored, err := port.SetBrightness(level)
			if err != nil {
				return fmt.Errorf("set brightness: %w", err)
			}
			return printBrightness(cmd.OutOrStdout(), level, stored)
		},
	}
}

func printBrightness(w io.Writer, requested, stored int) error {
	var err error
	if requested != stored {
		_, err = fmt.Fprintf(w, "brightness %d (clamped from %d)\n", stored, requested)
	} else {
		_, err = fmt.Fprintf(w, "brightness %d\n", stored)
	}
	return err
}

func (a *app) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			file := a.manager.ConfigFileUsed()
			if file == "" {
				file = "(none, defaults and environment)"
			}
			fmt.Fprintf(out, "# file: %s\n", file)
			fmt.Fprintln(out, litter.Sdump(a.manager.Get()))
			return nil
		},
	}
}
