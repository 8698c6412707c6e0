package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"videoflix/internal/config"
	"videoflix/internal/preflight"
	"videoflix/internal/transcode"
)

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcode <source>",
		Short: "Encode every configured resolution for a source now, bypassing the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			logger := ctx.commandLogger(cfg)
			result, runErr := newPipeline(cfg, logger).transcode.Run(cmd.Context(), source)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, newTranscodeView(result)); err != nil {
					return err
				}
			} else if len(result.Variants) > 0 {
				rows := make([][]string, 0, len(result.Variants))
				for _, v := range result.Variants {
					outcome := "published"
					if !v.OK() {
						outcome = fmt.Sprintf("failed (exit %d)", v.ExitCode)
					}
					rows = append(rows, []string{
						strconv.Itoa(v.Height) + "p",
						outcome,
						strconv.Itoa(v.Segments),
						v.Duration.Round(100 * time.Millisecond).String(),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Variant", "Outcome", "Segments", "Elapsed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(out, "Result: %s\n", result.State)
			}

			if runErr != nil {
				return runErr
			}
			if result.State == transcode.StatePartiallyFailed {
				return fmt.Errorf("transcode %s: %d resolution(s) failed", result.Asset.Stem, len(result.FailedHeights()))
			}
			return nil
		},
	}
}

type transcodeView struct {
	Asset    string        `json:"asset"`
	State    string        `json:"state"`
	Variants []variantView `json:"variants"`
}

type variantView struct {
	Height   int    `json:"height"`
	OK       bool   `json:"ok"`
	ExitCode int    `json:"exit_code,omitempty"`
	Segments int    `json:"segments"`
	Error    string `json:"error,omitempty"`
}

func newTranscodeView(r transcode.Result) transcodeView {
	view := transcodeView{Asset: r.Asset.Stem, State: string(r.State), Variants: []variantView{}}
	for _, v := range r.Variants {
		vv := variantView{Height: v.Height, OK: v.OK(), ExitCode: v.ExitCode, Segments: v.Segments}
		if v.Err != nil {
			vv.Error = v.Err.Error()
		}
		view.Variants = append(view.Variants, vv)
	}
	return view
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var thumbnail string

	cmd := &cobra.Command{
		Use:   "cleanup <source>",
		Short: "Remove a source, its thumbnail and every HLS variant now, bypassing the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if thumbnail != "" {
				if thumbnail, err = config.ExpandPath(thumbnail); err != nil {
					return err
				}
			}
			report, runErr := newPipeline(cfg, ctx.commandLogger(cfg)).cleanup.Run(cmd.Context(), source, thumbnail)
			if ctx.JSONMode() {
				errs := make([]string, 0, len(report.Errors))
				for _, e := range report.Errors {
					errs = append(errs, e.Error())
				}
				if err := writeJSON(cmd, map[string]any{"removed": report.Removed, "errors": errs}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, path := range report.Removed {
					fmt.Fprintf(out, "removed %s\n", path)
				}
				fmt.Fprintf(out, "Removed %d path(s), %d failure(s)\n", len(report.Removed), len(report.Errors))
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&thumbnail, "thumbnail", "", "Thumbnail file to remove as well")
	return cmd
}

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, ffmpeg and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if ctx.JSONMode() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
				return preflight.Err(results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "ok"
				switch {
				case !r.Passed && r.Advisory:
					state = "warn"
				case !r.Passed:
					state = "FAIL"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "State", "Detail"}, rows, nil))
			return preflight.Err(results)
		},
	}
}
