package fitdiag

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// DefaultNamePrefix is the fixed part of the --name argument. The channel is appended to it.
const DefaultNamePrefix = ".msd-80to170_Pt-300toInf_particleNet_XbbVsQCD"

// FitOptions describes the static combine invocation. Only the channel passed to Args varies
// between directories.
type FitOptions struct {
	Binary                string
	Method                string
	Workspace             string
	SaveWorkspace         bool
	NamePrefix            string
	Strategy              int
	RobustFit             int
	SaveShapes            bool
	SaveWithUncertainties bool
	RedefineSignalPOIs    string
	SetParameters         string
	FreezeParameters      string
	StepSize              float64
	Analytic              bool
	MaxCalls              int
	FallbackAlgos         []string
	NewCrossingAlgo       bool
	NeverGiveUp           bool
	Bound                 bool
}

// DefaultFitOptions returns the flag set used for the mu-tag calibration fits
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Binary:                "combine",
		Method:                "FitDiagnostics",
		Workspace:             "workspace.root",
		SaveWorkspace:         true,
		NamePrefix:            DefaultNamePrefix,
		Strategy:              2,
		RobustFit:             1,
		SaveShapes:            true,
		SaveWithUncertainties: true,
		RedefineSignalPOIs:    "r,SF_c,SF_light",
		SetParameters:         "r=1,SF_c=1,SF_light=1",
		FreezeParameters:      "SF_light",
		StepSize:              0.001,
		Analytic:              true,
		MaxCalls:              9999999,
		FallbackAlgos:         []string{"Minuit2,Migrad,0:0.2", "Minuit2,Migrad,1:0.1"},
		NewCrossingAlgo:       true,
		NeverGiveUp:           true,
		Bound:                 true,
	}
}

// Validate makes sure the template can produce a usable command line
func (o FitOptions) Validate() error {
	if o.Binary == "" {
		return eris.New("fit binary must not be empty")
	}
	if o.Method == "" {
		return eris.New("fit method must not be empty")
	}
	if o.Workspace == "" {
		return eris.New("workspace file name must not be empty")
	}
	if o.NamePrefix == "" {
		return eris.New("result name prefix must not be empty")
	}
	if o.StepSize < 0 {
		return eris.Errorf("invalid step size %g", o.StepSize)
	}

	return nil
}

// ResultName returns the value passed to --name for the given channel
func (o FitOptions) ResultName(channel string) string {
	return o.NamePrefix + "-" + channel
}

// Args renders the argument list for combine (without the binary itself)
func (o FitOptions) Args(channel string) []string {
	args := []string{"-M", o.Method, "-d", o.Workspace}
	if o.SaveWorkspace {
		args = append(args, "--saveWorkspace")
	}

	args = append(args,
		"--name", o.ResultName(channel),
		"--cminDefaultMinimizerStrategy", strconv.Itoa(o.Strategy),
		"--robustFit", strconv.Itoa(o.RobustFit),
	)

	if o.SaveShapes {
		args = append(args, "--saveShapes")
	}
	if o.SaveWithUncertainties {
		args = append(args, "--saveWithUncertainties")
	}
	if o.RedefineSignalPOIs != "" {
		args = append(args, "--redefineSignalPOIs", o.RedefineSignalPOIs)
	}
	if o.SetParameters != "" {
		args = append(args, "--setParameters", o.SetParameters)
	}
	if o.FreezeParameters != "" {
		args = append(args, "--freezeParameters", o.FreezeParameters)
	}
	if o.StepSize > 0 {
		args = append(args, "--stepSize", strconv.FormatFloat(o.StepSize, 'g', -1, 64))
	}
	if o.Analytic {
		args = append(args, "--X-rtd", "MINIMIZER_analytic")
	}
	if o.MaxCalls > 0 {
		args = append(args, "--X-rtd", "MINIMIZER_MaxCalls="+strconv.Itoa(o.MaxCalls))
	}
	for _, algo := range o.FallbackAlgos {
		args = append(args, "--cminFallbackAlgo", algo)
	}
	if o.NewCrossingAlgo {
		args = append(args, "--X-rtd", "FITTER_NEW_CROSSING_ALGO")
	}
	if o.NeverGiveUp {
		args = append(args, "--X-rtd", "FITTER_NEVER_GIVE_UP")
	}
	if o.Bound {
		args = append(args, "--X-rtd", "FITTER_BOUND")
	}

	return args
}

// Command returns the full argv including the binary
func (o FitOptions) Command(channel string) []string {
	return append([]string{o.Binary}, o.Args(channel)...)
}
