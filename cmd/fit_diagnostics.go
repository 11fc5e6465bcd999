package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mutag-calib/combine-tools/pkg"
	"github.com/mutag-calib/combine-tools/pkg/fitdiag"
)

var fitDiagnosticsCmd = &cobra.Command{
	Use:     "fit-diagnostics base_dir channel",
	Aliases: []string{"invoke"},
	Short:   "Runs combine -M FitDiagnostics in every tau21 datacard directory",
	Long: `Walks base_dir/202*/*/tau21*, sources combine_cards.sh in each directory and runs
combine in FitDiagnostics mode on workspace.root. The channel is appended to the result name.
Directories without combine_cards.sh are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 2 {
			return eris.New("Too many arguments")
		}

		var baseDir, channel string
		if len(args) > 0 {
			baseDir = args[0]
		}
		if len(args) > 1 {
			channel = args[1]
		}

		if baseDir == "" || channel == "" {
			return fitdiag.ErrUsage
		}

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		jobs := cfg.Jobs
		if cmd.Flags().Changed("jobs") {
			jobs, err = cmd.Flags().GetInt("jobs")
			if err != nil {
				return err
			}
		}

		reportPath, err := cmd.Flags().GetString("report")
		if err != nil {
			return err
		}

		showProgress, err := cmd.Flags().GetBool("progress")
		if err != nil {
			return err
		}

		driver := fitdiag.NewDriver()
		driver.Options = cfg.FitOptions()
		driver.Jobs = jobs
		driver.DryRun = dryRun

		var bar *progressbar.ProgressBar
		if showProgress {
			driver.OnStart = func(total int) {
				bar = getProgressBar(total, cmd.ErrOrStderr())
			}
			driver.OnDone = func(fitdiag.Outcome) {
				_ = bar.Add(1)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		ctx = fitdiag.WithLogger(ctx, &logger)

		summary, err := driver.Run(ctx, baseDir, channel)
		if bar != nil {
			_ = bar.Finish()
		}
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary)

			if reportPath != "" {
				if rErr := summary.WriteReport(reportPath); rErr != nil {
					logger.Error().Err(rErr).Msg("Failed to write report")
				}
			}
		}

		return err
	},
}

func init() {
	fitDiagnosticsCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	fitDiagnosticsCmd.Flags().IntP("jobs", "j", 1, "number of directories to fit in parallel")
	fitDiagnosticsCmd.Flags().String("report", "", "write a YAML report of all directories to this file")
	fitDiagnosticsCmd.Flags().Bool("progress", false, "show a progress bar")

	rootCmd.AddCommand(fitDiagnosticsCmd)
}

func getProgressBar(length int, out io.Writer) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions(length,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("fits"),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
	)
}

func printSummary(out io.Writer, summary *fitdiag.Summary) {
	pkg.PrintTask(out, fmt.Sprintf("%d succeeded, %d skipped, %d failed",
		summary.Count(fitdiag.StatusSucceeded),
		summary.Count(fitdiag.StatusSkipped),
		summary.Count(fitdiag.StatusFailed),
	))

	for _, o := range summary.Outcomes {
		switch o.Status {
		case fitdiag.StatusSkipped:
			pkg.PrintWarning(out, fmt.Sprintf("%s: skipped (%s)", o.Dir, o.Reason))
		case fitdiag.StatusFailed:
			pkg.PrintError(out, fmt.Sprintf("%s: %s", o.Dir, o.Err))
		}
	}
}
