package main

import (
	"fmt"
	"sync"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/quiz-timer/audio"
	"github.com/lixenwraith/quiz-timer/clock"
	"github.com/lixenwraith/quiz-timer/config"
	"github.com/lixenwraith/quiz-timer/core"
	"github.com/lixenwraith/quiz-timer/countdown"
	"github.com/lixenwraith/quiz-timer/render"
	"github.com/lixenwraith/quiz-timer/status"
)

// footerFor returns the key hint line. Under recompute the saved start time stays
// put, so stopping does not pause the quiz.
func footerFor(strategy countdown.Strategy) string {
	if strategy == countdown.StrategySnapshot {
		return "p pause/resume · r reset · q quit"
	}
	return "p stop/start (clock keeps running) · r reset · q quit"
}

func newRunCmd(a *app) *cobra.Command {
	var mute bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the countdown for a quiz",
		Long: heredoc.Doc(`
			Opens the countdown in the terminal and starts it. An earlier run of the same
			quiz is resumed. When time runs out the quiz is submitted and its saved
			state cleared.

			With the default recompute strategy the quiz is timed by wall clock: p stops
			the display but time keeps running, as it does while the program is closed.
			Use --strategy snapshot for a countdown that p truly pauses.
		`),
		Example: heredoc.Doc(`
			# Thirty minute quiz with the default settings
			$ quiz-timer run --quiz 42

			# Ten minutes, silent, snapshot persistence in SQLite
			$ quiz-timer run --quiz 42 --minutes 10 --mute --strategy snapshot --store sqlite
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if mute {
				cfg.Audio.Enabled = false
			}

			submitted, err := a.runQuiz(cfg)
			if err != nil {
				return err
			}
			if submitted {
				fmt.Fprintf(cmd.OutOrStdout(), "quiz %s submitted\n", cfg.Quiz.ID)
			}
			return nil
		},
	}

	cmd.Flags().String("strategy", "", "Persistence strategy: recompute or snapshot")
	cmd.Flags().BoolVar(&mute, "mute", false, "Disable warning chimes")
	a.v.BindPFlag("timer.strategy", cmd.Flags().Lookup("strategy"))

	return cmd
}

// runQuiz owns the terminal until the user quits or the quiz expires.
// submitted reports whether the expiry callback ran.
func (a *app) runQuiz(cfg *config.Config) (submitted bool, err error) {
	strategy, err := cfg.Strategy()
	if err != nil {
		return false, err
	}

	logger, logFile, err := a.openLogger(cfg)
	if err != nil {
		return false, err
	}
	defer logFile.Close()

	store, err := a.openStore(cfg)
	if err != nil {
		return false, err
	}
	defer store.Close()

	pool, err := countdown.NewPoolDispatcher(1)
	if err != nil {
		return false, errors.Wrap(err, "create dispatcher")
	}
	defer pool.Close()

	chime := audio.NewChime(!cfg.Audio.Enabled, logger)
	if err := chime.Initialize(); err != nil {
		// Non-fatal, the countdown runs without sound
		logger.Warnf("audio unavailable: %v", err)
	}
	defer chime.Cleanup()

	screen, err := tcell.NewScreen()
	if err != nil {
		return false, errors.Wrap(err, "create screen")
	}
	if err := screen.Init(); err != nil {
		return false, errors.Wrap(err, "init screen")
	}
	core.RegisterCrashScreen(screen)
	defer func() {
		core.RegisterCrashScreen(nil)
		screen.Fini()
	}()

	view := render.NewScreen(screen, fmt.Sprintf("Quiz %s", cfg.Quiz.ID))
	view.SetFooter(footerFor(strategy))

	done := make(chan struct{})
	var once sync.Once
	stats := status.NewRegistry()
	defer func() {
		logger.WithFields(logrus.Fields(stats.Snapshot())).Info("session counters")
	}()

	timer := countdown.New(countdown.Config{
		Total:    cfg.Duration(),
		QuizID:   cfg.Quiz.ID,
		Strategy: strategy,
		Display:  view,
		OnExpire: func() { once.Do(func() { close(done) }) },
	},
		countdown.WithClock(clock.New()),
		countdown.WithStore(store),
		countdown.WithLogger(logger),
		countdown.WithAlerter(chime),
		countdown.WithDispatcher(pool),
		countdown.WithGraceDelay(cfg.Timer.GraceDelay),
		countdown.WithBannerTTL(cfg.Timer.BannerTTL),
		countdown.WithStatus(stats),
	)
	logger.WithFields(logrus.Fields{
		"quiz":      cfg.Quiz.ID,
		"remaining": timer.Remaining(),
		"strategy":  strategy,
	}).Info("quiz opened")
	timer.Start()

	events := make(chan tcell.Event, 8)
	quit := make(chan struct{})
	defer close(quit)
	core.Go(func() { pollEvents(screen, events, quit) })

	for {
		select {
		case <-done:
			timer.ClearState()
			logger.WithField("elapsed", timer.FormattedElapsedTime()).Info("quiz submitted")
			return true, nil

		case ev := <-events:
			if !handleEvent(ev, timer, screen, view) {
				timer.Stop()
				logger.WithField("remaining", timer.Remaining()).Info("quiz closed")
				return false, nil
			}
		}
	}
}

// pollEvents forwards screen events until quit closes or the screen is finalized
func pollEvents(screen tcell.Screen, events chan<- tcell.Event, quit <-chan struct{}) {
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-quit:
			return
		}
	}
}

// handleEvent applies a key or resize, returning false when the user quits
func handleEvent(ev tcell.Event, timer *countdown.Timer, screen tcell.Screen, view *render.Screen) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		screen.Sync()
		view.Draw()

	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'p':
				if timer.State() == countdown.Running {
					timer.Stop()
				} else {
					timer.Start()
				}
			case 'r':
				timer.Reset()
			}
		}
	}
	return true
}
