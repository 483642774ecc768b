package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newStatusCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show KodiBack configuration, source and backup state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := setupLogger(global.verbose)
			deps := factory(logger)
			homeDir, err := os.UserHomeDir()
			if err != nil {
				handleCmdError(exitCode, fmt.Errorf("resolve home dir: %w", usecase.ErrCritical))
				return
			}
			opts := usecase.StatusOptions{
				ConfigPath: resolveConfigPath(deps, global.configPath, homeDir),
				HomeDir:    homeDir,
			}
			report, err := usecase.Status(cmd.Context(), opts, deps, logger)
			if err != nil {
				handleCmdError(exitCode, err)
				return
			}
			out := cmd.OutOrStdout()
			useColor := false
			if f, ok := out.(*os.File); ok {
				useColor = shouldUseColor(f)
			}
			if _, err := fmt.Fprint(out, usecase.FormatStatus(report, useColor)); err != nil {
				handleCmdError(exitCode, err)
				return
			}
			*exitCode = exitSuccess
		},
	}
}
