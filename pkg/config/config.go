package config

import (
	"os"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/mutag-calib/combine-tools/pkg/fitdiag"
)

// EnvPrefix is prepended to the environment variable of every config field
const EnvPrefix = "COMBINE_TOOLS"

// Config describes all configuration options
type Config struct {
	Log struct {
		Level string `default:"info" usage:"Minimum log level (debug, info, warn, error)" toml:"level" yaml:"level"`
		JSON  bool   `default:"false" usage:"Output JSONND instead of pretty console messages" toml:"json" yaml:"json"`
	} `toml:"log" yaml:"log"`
	Jobs int       `default:"1" usage:"Number of directories to fit in parallel" toml:"jobs" yaml:"jobs"`
	Fit  FitConfig `toml:"fit" yaml:"fit"`
}

// FitConfig mirrors fitdiag.FitOptions so the static combine flags can be changed without a rebuild
type FitConfig struct {
	Binary                string  `default:"combine" toml:"binary" yaml:"binary"`
	Method                string  `default:"FitDiagnostics" toml:"method" yaml:"method"`
	Workspace             string  `default:"workspace.root" toml:"workspace" yaml:"workspace"`
	SaveWorkspace         bool    `default:"true" toml:"save_workspace" yaml:"save_workspace"`
	NamePrefix            string  `default:".msd-80to170_Pt-300toInf_particleNet_XbbVsQCD" toml:"name_prefix" yaml:"name_prefix"`
	Strategy              int     `default:"2" toml:"strategy" yaml:"strategy"`
	RobustFit             int     `default:"1" toml:"robust_fit" yaml:"robust_fit"`
	SaveShapes            bool    `default:"true" toml:"save_shapes" yaml:"save_shapes"`
	SaveWithUncertainties bool    `default:"true" toml:"save_with_uncertainties" yaml:"save_with_uncertainties"`
	RedefineSignalPOIs    string  `default:"r,SF_c,SF_light" toml:"redefine_signal_pois" yaml:"redefine_signal_pois"`
	SetParameters         string  `default:"r=1,SF_c=1,SF_light=1" toml:"set_parameters" yaml:"set_parameters"`
	FreezeParameters      string  `default:"SF_light" toml:"freeze_parameters" yaml:"freeze_parameters"`
	StepSize              float64 `default:"0.001" toml:"step_size" yaml:"step_size"`
	Analytic              bool    `default:"true" toml:"analytic" yaml:"analytic"`
	MaxCalls              int     `default:"9999999" toml:"max_calls" yaml:"max_calls"`
	// semicolon separated, each entry is passed to one --cminFallbackAlgo flag
	FallbackAlgos   string `default:"Minuit2,Migrad,0:0.2;Minuit2,Migrad,1:0.1" toml:"fallback_algos" yaml:"fallback_algos"`
	NewCrossingAlgo bool   `default:"true" toml:"new_crossing_algo" yaml:"new_crossing_algo"`
	NeverGiveUp     bool   `default:"true" toml:"never_give_up" yaml:"never_give_up"`
	Bound           bool   `default:"true" toml:"bound" yaml:"bound"`
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// path may be empty, in which case only defaults and environment variables are used.
func Loader(path string) (*Config, *aconfig.Loader) {
	cfg := Config{}
	files := []string{}
	if path != "" {
		files = append(files, path)
	}

	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		EnvPrefix:        EnvPrefix,
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
			".yaml": aconfigyaml.New(),
			".yml":  aconfigyaml.New(),
		},
	})
}

// Load reads the config from defaults, the given file and the environment, then validates it
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(err, "Could not open config file %s", path)
		}
	}

	cfg, loader := Loader(path)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Jobs < 1 {
		return eris.Errorf(`Invalid value for jobs: %d (must be at least 1)`, cfg.Jobs)
	}

	if err := cfg.FitOptions().Validate(); err != nil {
		return eris.Wrap(err, "Invalid fit section")
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// FitOptions converts the fit section into the template used by the driver
func (cfg *Config) FitOptions() fitdiag.FitOptions {
	f := cfg.Fit
	return fitdiag.FitOptions{
		Binary:                f.Binary,
		Method:                f.Method,
		Workspace:             f.Workspace,
		SaveWorkspace:         f.SaveWorkspace,
		NamePrefix:            f.NamePrefix,
		Strategy:              f.Strategy,
		RobustFit:             f.RobustFit,
		SaveShapes:            f.SaveShapes,
		SaveWithUncertainties: f.SaveWithUncertainties,
		RedefineSignalPOIs:    f.RedefineSignalPOIs,
		SetParameters:         f.SetParameters,
		FreezeParameters:      f.FreezeParameters,
		StepSize:              f.StepSize,
		Analytic:              f.Analytic,
		MaxCalls:              f.MaxCalls,
		FallbackAlgos:         splitAlgos(f.FallbackAlgos),
		NewCrossingAlgo:       f.NewCrossingAlgo,
		NeverGiveUp:           f.NeverGiveUp,
		Bound:                 f.Bound,
	}
}

func splitAlgos(value string) []string {
	result := []string{}
	for _, algo := range strings.Split(value, ";") {
		algo = strings.TrimSpace(algo)
		if algo != "" {
			result = append(result, algo)
		}
	}
	return result
}
