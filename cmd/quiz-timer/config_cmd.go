package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/quiz-timer/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Configuration commands",
		Long:  `Commands for managing the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Example: heredoc.Doc(`
			# Write $HOME/.quiz-timer.yaml
			$ quiz-timer config init

			# Write elsewhere, replacing an existing file
			$ quiz-timer config init --config ./quiz.yaml --force
		`),
		Args: cobra.NoArgs,
		// The file may not exist yet, so skip reading it
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := homedir.Expand(a.cfgFile)
			if err != nil {
				return err
			}
			if path == "" {
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if err := config.Write(a.fs, path, config.Default(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file")
	return cmd
}
