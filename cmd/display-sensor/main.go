// Command display-sensor switches a Raspberry Pi display on and off from a
// PIR motion sensor and reports its state over HTTP and MQTT.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweeney/display-sensor/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	configFile string
	manager    *config.Manager
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "display-sensor",
		Short: "Switch the display on and off from a PIR motion sensor",
		Long: `display-sensor polls a PIR motion sensor on a GPIO line and powers the
display on when someone is present and off after a period of absence.

Without a subcommand it runs the daemon.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}
			a.manager = config.NewManager(a.configFile)
			return a.manager.Load()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "",
		fmt.Sprintf("config file (default %s.toml in %s)", config.FileName, strings.Join(config.SearchDirs(), ", ")))

	run := a.newRunCmd()
	root.RunE = run.RunE
	root.AddCommand(run, a.newStateCmd(), a.newBrightnessCmd(), a.newConfigCmd())
	return root
}

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the display daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(a.manager)
		},
	}
}
