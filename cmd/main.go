package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mutag-calib/combine-tools/pkg/config"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "combine-tools",
	Short: "Batch tools for the mu-tagging calibration fits",
	Long: `This command bundles the tools used to run combine over the prepared datacard
directories and to post-process the resulting scale factors.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, err = cmd.Flags().GetString("log-level")
			if err != nil {
				return err
			}
		}

		if cmd.Flags().Changed("log-json") {
			cfg.Log.JSON, err = cmd.Flags().GetBool("log-json")
			if err != nil {
				return err
			}
		}

		if err = cfg.Validate(); err != nil {
			return err
		}

		out := cmd.ErrOrStderr()
		if cfg.Log.JSON {
			zerolog.ErrorStackMarshaler = func(err error) interface{} {
				return eris.ToJSON(err, true)
			}
			logger = zerolog.New(out).With().Timestamp().Logger()
		} else {
			logger = zerolog.New(NewConsoleWriter(out))
		}

		logger = logger.Level(cfg.LogLevel())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv(config.EnvPrefix+"_CONFIG"), "TOML or YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "print log events as JSON lines")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
