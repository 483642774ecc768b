package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newRestoreCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	var (
		target string
		yes    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "restore [ARCHIVE]",
		Short: "Restore userdata and addons from a backup archive",
		Long: "Restore userdata and addons from a backup archive.\n\n" +
			"ARCHIVE defaults to the last backup recorded in the config. The target\n" +
			"must be empty or an existing Kodi directory; replacing an existing\n" +
			"installation deletes its userdata and addons and requires --yes.",
		Args: cobra.MaximumNArgs(1),
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

			var archiveArg string
			if len(args) == 1 {
				archiveArg = args[0]
			}
			req := usecase.RestoreRequest{
				ArchivePath:     usecase.ExpandHomeDirPublic(firstNonEmpty(archiveArg, env.runtime.LastBackupFile), env.homeDir),
				TargetDir:       usecase.ExpandHomeDirPublic(firstNonEmpty(target, env.runtime.SourceDir), env.homeDir),
				ReplaceExisting: yes,
				StateDir:        env.runtime.StateDir,
				Progress:        progressSink(ctx, env.logger, format),
			}
			if req.ArchivePath == "" {
				handleCmdError(exitCode, fmt.Errorf("no archive given and no last backup recorded: %w", usecase.ErrUsage))
				return
			}
			if req.TargetDir == "" {
				handleCmdError(exitCode, fmt.Errorf("no target given (use --target or set paths.source_dir): %w", usecase.ErrUsage))
				return
			}

			warnKodiClosed(ctx, env)
			result, runErr := usecase.PerformRestore(ctx, req, env.deps, env.logger)
			if runErr == nil {
				notify(ctx, env, fmt.Sprintf("Restore completed: %s files", humanize.Comma(int64(result.FilesRestored))))
				recordLastArchive(ctx, env, req.ArchivePath)
			} else {
				notify(ctx, env, "Restore failed: "+result.ErrorMessage)
			}

			if err := renderRestore(cmd.OutOrStdout(), format, result); err != nil && runErr == nil {
				runErr = err
			}
			handleCmdError(exitCode, runErr)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Kodi directory to restore into (default paths.source_dir)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace an existing installation")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "result format: text, json or yaml")
	_ = cmd.RegisterFlagCompletionFunc("target", completeDirs)

	return cmd
}

func renderRestore(w io.Writer, format outputFormat, r *usecase.RestoreResult) error {
	if format != outputText {
		return writeStructured(w, format, r)
	}
	if !r.Success {
		return nil
	}
	_, err := fmt.Fprintf(w, "Restored:       %s files (%s failed)\nArchive held:   %s userdata, %s addons files, %s\n",
		humanize.Comma(int64(r.FilesRestored)),
		humanize.Comma(int64(r.FilesFailed)),
		humanize.Comma(int64(r.UserdataFileCount)),
		humanize.Comma(int64(r.AddonsFileCount)),
		usecase.FormatSize(r.TotalUncompressedSize),
	)
	return err
}
