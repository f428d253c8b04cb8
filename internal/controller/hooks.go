package controller

import "github.com/rs/zerolog"

// Hooks are called as the lifecycle enters or stays in a phase. Nil fields
// are skipped. DisplayOn and DisplayOff run after the port command, with
// err set when the command failed.
type Hooks struct {
	DisplayOn  func(err error)
	DisplayOff func(err error)

	// OffCountDown and OnCountDown run on the tick a count-down starts.
	OffCountDown func(from int)
	OnCountDown  func(from int)

	// OffCountingDown and OnCountingDown run on every later tick of the count-down.
	OffCountingDown func(remaining int)
	OnCountingDown  func(remaining int)
}

// countdownLogEvery limits count-down logging to one line per 30 ticks.
const countdownLogEvery = 30

// DefaultHooks logs each phase entry and every 30th count-down tick.
func DefaultHooks(log zerolog.Logger) Hooks {
	return Hooks{
		DisplayOn: func(err error) {
			if err == nil {
				log.Info().Msg("display turned on")
			}
		},
		DisplayOff: func(err error) {
			if err == nil {
				log.Info().Msg("display turned off")
			}
		},
		OffCountDown: func(from int) {
			log.Debug().Int("from", from).Msg("starting count down to display off")
		},
		OnCountDown: func(from int) {
			log.Debug().Int("from", from).Msg("starting count down to display on")
		},
		OffCountingDown: func(remaining int) {
			if remaining%countdownLogEvery == 0 {
				log.Debug().Int("remaining", remaining).Msg("counting down to display off")
			}
		},
		OnCountingDown: func(remaining int) {
			if remaining%countdownLogEvery == 0 {
				log.Debug().Int("remaining", remaining).Msg("counting down to display on")
			}
		},
	}
}
