package cmd

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mutag-calib/combine-tools/pkg"
	"github.com/mutag-calib/combine-tools/pkg/correctionlib"
)

var sfLookupCmd = &cobra.Command{
	Use:   "sf-lookup file era pt...",
	Short: "Evaluates the bb and cc scale factors of a combined file",
	Long: `Prints the bb and cc scale factor for every given jet pT and the product over all jets,
which is the event weight for an event containing these jets.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		systematic, err := cmd.Flags().GetString("systematic")
		if err != nil {
			return err
		}

		pts := make([]float64, 0, len(args)-2)
		for _, arg := range args[2:] {
			pt, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return eris.Wrapf(err, "Invalid pt %s", arg)
			}
			pts = append(pts, pt)
		}

		bb, cc, err := correctionlib.EraCorrections(args[0], args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		pkg.PrintTask(out, fmt.Sprintf("%s (%s)", args[1], systematic))
		for _, pt := range pts {
			sfBB, err := bb.Evaluate(pt, systematic)
			if err != nil {
				return err
			}
			sfCC, err := cc.Evaluate(pt, systematic)
			if err != nil {
				return err
			}

			pkg.PrintSubtask(out, fmt.Sprintf("pt = %g: bb = %.4f, cc = %.4f", pt, sfBB, sfCC))
		}

		weightBB, err := bb.EventWeight(pts, systematic)
		if err != nil {
			return err
		}
		weightCC, err := cc.EventWeight(pts, systematic)
		if err != nil {
			return err
		}

		pkg.PrintSubtask(out, fmt.Sprintf("event weight: bb = %.4f, cc = %.4f", weightBB, weightCC))
		return nil
	},
}

func init() {
	sfLookupCmd.Flags().StringP("systematic", "s", "nominal", "systematic variation ("+fmt.Sprint(correctionlib.Systematics)+")")

	rootCmd.AddCommand(sfLookupCmd)
}
