package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/quiz-timer/countdown"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved progress of a quiz",
		Long:  `Reads the persisted timer of a quiz without starting it.`,
		Example: heredoc.Doc(`
			$ quiz-timer status --quiz 42 --minutes 10
			quiz 42: 07:00 remaining, 3m 0s elapsed
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := a.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			strategy, err := cfg.Strategy()
			if err != nil {
				return err
			}
			remaining, found, err := countdown.Inspect(store, cfg.Quiz.ID, strategy, cfg.Duration(), a.now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case !found:
				fmt.Fprintf(out, "quiz %s: not started\n", cfg.Quiz.ID)
			case remaining == 0:
				fmt.Fprintf(out, "quiz %s: time is up\n", cfg.Quiz.ID)
			default:
				total := int(cfg.Duration().Seconds())
				fmt.Fprintf(out, "quiz %s: %s remaining, %s elapsed\n",
					cfg.Quiz.ID, countdown.FormatClock(remaining), countdown.FormatElapsed(total-remaining))
			}
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved progress of a quiz",
		Long: heredoc.Doc(`
			Deletes every persisted record of a quiz, as submitting it does.
			The next run starts from the full duration.
		`),
		Example: heredoc.Doc(`
			$ quiz-timer clear --quiz 42
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := a.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := countdown.ClearQuiz(store, cfg.Quiz.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "quiz %s: cleared\n", cfg.Quiz.ID)
			return nil
		},
	}
}
