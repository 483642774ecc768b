package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/usecase"
)

func newCatalogCmd(factory depsFactory, global *globalOptions, exitCode *int) *cobra.Command {
	var (
		source string
		output string
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List cleanup targets and what they would free",
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

			root := usecase.ExpandHomeDirPublic(firstNonEmpty(source, env.runtime.SourceDir), env.homeDir)
			items, runErr := usecase.DescribeCatalog(ctx, env.deps.FileSystem, root, env.runtime.Cleanup)
			if runErr == nil {
				runErr = renderCatalog(cmd.OutOrStdout(), format, items, root != "")
			}
			handleCmdError(exitCode, runErr)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Kodi directory to measure (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "result format: text, json or yaml")
	_ = cmd.RegisterFlagCompletionFunc("source", completeDirs)

	return cmd
}

func renderCatalog(w io.Writer, format outputFormat, items []usecase.CatalogItem, measured bool) error {
	if format != outputText {
		return writeStructured(w, format, items)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "KEY\tPATH\tDEFAULT\tENABLED"
	if measured {
		header += "\tSIZE"
	}
	if _, err := fmt.Fprintln(tw, header); err != nil {
		return err
	}
	for _, it := range items {
		row := fmt.Sprintf("%s\t%s\t%s\t%s", it.Key, it.Path, yesNo(it.Default), yesNo(it.Enabled))
		if measured {
			size := "-"
			if it.Present {
				size = usecase.FormatSize(it.Size)
			}
			row += "\t" + size
		}
		if _, err := fmt.Fprintln(tw, row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
