package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newBackupCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	var (
		source    string
		dest      string
		label     string
		prefix    string
		enable    []string
		disable   []string
		noCleanup bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Clean caches and archive userdata and addons into a zip file",
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

			cleanup, err := resolveCleanup(env.runtime.Cleanup, enable, disable, noCleanup)
			if err != nil {
				handleCmdError(exitCode, err)
				return
			}
			req := usecase.BackupRequest{
				SourceDir:   usecase.ExpandHomeDirPublic(firstNonEmpty(source, env.runtime.SourceDir), env.homeDir),
				Destination: usecase.ExpandHomeDirPublic(firstNonEmpty(dest, env.runtime.BackupDir), env.homeDir),
				Label:       firstNonEmpty(label, env.runtime.Label),
				Prefix:      firstNonEmpty(prefix, env.runtime.Prefix),
				Cleanup:     cleanup,
				StateDir:    env.runtime.StateDir,
				Progress:    progressSink(ctx, env.logger, format),
			}
			if req.SourceDir == "" || req.Destination == "" {
				handleCmdError(exitCode, fmt.Errorf(
					"source and destination not configured (run: kodiback init --source <kodi dir> --backup-dir %s): %w",
					usecase.SuggestedBackupDir, usecase.ErrUsage))
				return
			}

			warnKodiClosed(ctx, env)
			result, runErr := usecase.PerformFullBackup(ctx, req, env.deps, env.logger)
			if runErr == nil {
				notify(ctx, env, fmt.Sprintf("Backup completed: %s (%s)", result.Filename, usecase.FormatSize(result.FinalBackupSize)))
				recordLastArchive(ctx, env, result.Path)
			} else {
				notify(ctx, env, "Backup failed: "+result.ErrorMessage)
			}

			if err := renderBackup(cmd.OutOrStdout(), format, result); err != nil && runErr == nil {
				runErr = err
			}
			handleCmdError(exitCode, runErr)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Kodi directory holding userdata and addons (default from config)")
	cmd.Flags().StringVar(&dest, "dest", "", "backup directory or explicit .zip path (default from config)")
	cmd.Flags().StringVar(&label, "label", "", "label appended to the archive name")
	cmd.Flags().StringVar(&prefix, "prefix", "", "archive name prefix (default from config, then \"kodi\")")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "cleanup targets to enable for this run")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "cleanup targets to disable for this run")
	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "skip the cleanup pass")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "result format: text, json or yaml")

	_ = cmd.RegisterFlagCompletionFunc("source", completeDirs)
	_ = cmd.RegisterFlagCompletionFunc("enable", completeCleanupKeys)
	_ = cmd.RegisterFlagCompletionFunc("disable", completeCleanupKeys)

	return cmd
}

func renderBackup(w io.Writer, format outputFormat, r *usecase.BackupResult) error {
	if format != outputText {
		return writeStructured(w, format, r)
	}
	if !r.Success {
		return nil
	}
	_, err := fmt.Fprintf(w,
		"Archive:        %s\nFiles:          %s archived, %s skipped\nBefore cleanup: %s\nAfter cleanup:  %s (freed %s)\nArchive size:   %s\n",
		r.Path,
		humanize.Comma(int64(r.FilesArchived)),
		humanize.Comma(int64(r.FilesSkipped)),
		usecase.FormatSize(r.SizeBeforeCleanup),
		usecase.FormatSize(r.SizeAfterCleanup),
		usecase.FormatSize(r.SpaceFreed),
		usecase.FormatSize(r.FinalBackupSize),
	)
	return err
}

func completeDirs(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveFilterDirs
}

func completeCleanupKeys(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	catalog := usecase.CleanupCatalog()
	keys := make([]string, 0, len(catalog))
	for _, t := range catalog {
		keys = append(keys, string(t.Key)+"\t"+t.Description)
	}
	return keys, cobra.ShellCompDirectiveNoFileComp
}
