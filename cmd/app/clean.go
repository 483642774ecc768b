package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newCleanCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	var (
		source  string
		enable  []string
		disable []string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete caches, thumbnails and logs without creating an archive",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			format, err := parseOutputFormat(output)
			if err != nil {
				handleCmdError(exitCode, err)
				return
			}
			ctx := cmd.Context()
			env, err := prepareEnv(ctx, factory, global)
			if err != nil {
				handleCmdError(exitCode, err)
				return
			}
			defer env.close()

			cleanup, err := resolveCleanup(env.runtime.Cleanup, enable, disable, false)
			if err != nil {
				handleCmdError(exitCode, err)
				return
			}
			req := usecase.CleanRequest{
				SourceDir: usecase.ExpandHomeDirPublic(firstNonEmpty(source, env.runtime.SourceDir), env.homeDir),
				Cleanup:   cleanup,
				StateDir:  env.runtime.StateDir,
				Progress:  progressSink(ctx, env.logger, format),
			}
			if req.SourceDir == "" {
				handleCmdError(exitCode, fmt.Errorf("no source given (use --source or set paths.source_dir): %w", usecase.ErrUsage))
				return
			}

			result, runErr := usecase.PerformClean(ctx, req, env.deps, env.logger)
			if err := renderClean(cmd.OutOrStdout(), format, result); err != nil && runErr == nil {
				runErr = err
			}
			handleCmdError(exitCode, runErr)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Kodi directory (default from config)")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "cleanup targets to enable for this run")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "cleanup targets to disable for this run")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "result format: text, json or yaml")
	_ = cmd.RegisterFlagCompletionFunc("source", completeDirs)
	_ = cmd.RegisterFlagCompletionFunc("enable", completeCleanupKeys)
	_ = cmd.RegisterFlagCompletionFunc("disable", completeCleanupKeys)

	return cmd
}

func renderClean(w io.Writer, format outputFormat, r usecase.CleanupResult) error {
	if format != outputText {
		return writeStructured(w, format, r)
	}
	for _, e := range r.Entries {
		line := fmt.Sprintf("%-28s %s", e.Name, e.Status)
		if e.Deleted {
			line += " (" + usecase.FormatSize(e.BytesFreed) + ")"
		}
		if e.Error != "" {
			line += ": " + e.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Freed %s\n", usecase.FormatSize(r.BytesFreed))
	return err
}
