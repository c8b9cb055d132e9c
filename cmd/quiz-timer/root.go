package main

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz-timer <command>",
		Short: "Persistent quiz countdown timer",
		Long: heredoc.Doc(`
			Counts down a timed quiz in the terminal, warning at five minutes and one
			minute remaining. Progress survives restarts: reopening the same quiz resumes
			where it left off.
		`),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.readConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default is $HOME/.quiz-timer.yaml)")
	flags.String("quiz", "", "Quiz identifier, selects the persisted timer")
	flags.Int("minutes", 0, "Quiz length in minutes")
	flags.String("store", "", "State backend: file, sqlite or memory")
	flags.String("state", "", "State file path")

	a.v.BindPFlag("quiz.id", flags.Lookup("quiz"))
	a.v.BindPFlag("quiz.minutes", flags.Lookup("minutes"))
	a.v.BindPFlag("storage.backend", flags.Lookup("store"))
	a.v.BindPFlag("storage.path", flags.Lookup("state"))

	cmd.AddCommand(
		newRunCmd(a),
		newStatusCmd(a),
		newClearCmd(a),
		newConfigCmd(a),
	)
	return cmd
}
