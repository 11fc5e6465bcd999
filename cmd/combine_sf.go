package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mutag-calib/combine-tools/pkg"
	"github.com/mutag-calib/combine-tools/pkg/correctionlib"
)

var combineSFCmd = &cobra.Command{
	Use:   "combine-sf",
	Short: "Merges the per-pT-bin AK8 scale factor JSONs into one file per era",
	Long: `Reads ak8_sf_msdtest_Pt-<bin>__<era>.json for the 300to350, 350to425 and 425toInf bins
and writes ak8_sf_msdtest_Pt-combined_<era>.json with a pT binning for the bb and cc corrections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := cmd.Flags().GetString("dir")
		if err != nil {
			return err
		}

		eras, err := cmd.Flags().GetStringSlice("eras")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, era := range eras {
			pkg.PrintTask(out, "Combining "+era)
			set, err := correctionlib.CombineEra(dir, era)
			if err != nil {
				return err
			}

			outPath := correctionlib.OutputPath(dir, era)
			err = correctionlib.WriteFile(outPath, set)
			if err != nil {
				return err
			}

			pkg.PrintSubtask(out, "Wrote "+outPath)
		}

		return nil
	},
}

func init() {
	combineSFCmd.Flags().StringP("dir", "d", "ak8_sf_jsons", "directory containing the per-bin JSON files")
	combineSFCmd.Flags().StringSlice("eras", correctionlib.DefaultEras, "eras to combine")

	rootCmd.AddCommand(combineSFCmd)
}
