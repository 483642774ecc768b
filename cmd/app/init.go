package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newInitCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	var (
		sourceDir string
		backupDir string
		force     bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the KodiBack config and create its directories",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := setupLogger(global.verbose)
			deps := factory(logger)
			homeDir, err := os.UserHomeDir()
			if err != nil {
				handleCmdError(exitCode, fmt.Errorf("resolve home dir: %w", usecase.ErrCritical))
				return
			}
			opts := usecase.InitOptions{
				SourceDir: sourceDir,
				BackupDir: backupDir,
				Force:     force,
				DryRun:    dryRun,
				HomeDir:   homeDir,
			}
			plan, err := usecase.Init(cmd.Context(), opts, deps, logger)
			if err == nil {
				err = renderInitPlan(cmd.OutOrStdout(), plan, dryRun)
			}
			handleCmdError(exitCode, err)
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source", "", "Kodi directory holding userdata and addons")
	cmd.Flags().StringVar(
		&backupDir, "backup-dir", "",
		"backup directory (suggested: "+usecase.SuggestedBackupDir+")",
	)
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config (the old one is kept as .bak)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan changes without writing to disk")

	_ = cmd.RegisterFlagCompletionFunc("source", completeDirs)
	_ = cmd.RegisterFlagCompletionFunc("backup-dir", completeDirs)

	return cmd
}

func renderInitPlan(w io.Writer, plan *usecase.InitPlan, dryRun bool) error {
	verb := "Wrote"
	if dryRun {
		verb = "Would write"
	}
	if _, err := fmt.Fprintf(w, "%s config %s\n", verb, plan.ConfigPath); err != nil {
		return err
	}
	if plan.ConfigBackup != "" {
		if _, err := fmt.Fprintf(w, "Previous config saved as %s\n", plan.ConfigBackup); err != nil {
			return err
		}
	}
	for _, d := range plan.Dirs {
		if _, err := fmt.Fprintf(w, "Directory %s\n", d); err != nil {
			return err
		}
	}
	return nil
}
