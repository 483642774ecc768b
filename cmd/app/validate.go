package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newValidateCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate ARCHIVE",
		Short: "Check that an archive is a readable Kodi backup",
		Args:  cobra.ExactArgs(1),
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

			path := usecase.ExpandHomeDirPublic(args[0], env.homeDir)
			report := usecase.ValidateArchive(ctx, env.deps, path, progressSink(ctx, env.logger, format))
			runErr := report.Err
			if err := renderValidate(cmd.OutOrStdout(), format, report); err != nil && runErr == nil {
				runErr = err
			}
			handleCmdError(exitCode, runErr)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "result format: text, json or yaml")
	return cmd
}

func renderValidate(w io.Writer, format outputFormat, r usecase.ArchiveReport) error {
	if format != outputText {
		return writeStructured(w, format, r)
	}
	if !r.Valid {
		return nil
	}
	_, err := fmt.Fprintf(w, "Valid backup: %s userdata files, %s addons files, %s uncompressed\n",
		humanize.Comma(int64(r.UserdataFileCount)),
		humanize.Comma(int64(r.AddonsFileCount)),
		usecase.FormatSize(r.TotalUncompressedSize),
	)
	return err
}
