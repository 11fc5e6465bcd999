package fitdiag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ErrUsage is returned when the base directory or the channel is missing
var ErrUsage = eris.New("usage: fit-diagnostics <base_dir> <channel>")

// Driver walks the datacard tree and runs one fit per directory
type Driver struct {
	Options FitOptions
	Shell   *ShellRunner
	// Jobs limits the number of directories processed at once. Values below 2 mean sequential.
	Jobs   int
	DryRun bool
	// OnStart is called once with the number of discovered directories
	OnStart func(total int)
	// OnDone is called after every processed directory. It may be called concurrently.
	OnDone func(Outcome)
}

// NewDriver returns a sequential driver using the default fit options
func NewDriver() *Driver {
	return &Driver{
		Options: DefaultFitOptions(),
		Shell:   &ShellRunner{},
		Jobs:    1,
	}
}

// Run processes every directory below baseDir. Failed fits don't stop the traversal; they're
// collected in the summary and reported through a *FailedError.
func (d *Driver) Run(ctx context.Context, baseDir, channel string) (*Summary, error) {
	if baseDir == "" || channel == "" {
		return nil, ErrUsage
	}

	if err := d.Options.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid fit options")
	}

	dirs, err := Discover(baseDir)
	if err != nil {
		return nil, err
	}

	logger := log(ctx)
	if len(dirs) == 0 {
		logger.Warn().Msgf("No directories match %s", filepath.Join(baseDir, DirPattern))
	} else {
		logger.Debug().Msgf("Found %d directories", len(dirs))
	}

	if d.OnStart != nil {
		d.OnStart(len(dirs))
	}

	outcomes := make([]Outcome, len(dirs))
	done := make([]bool, len(dirs))

	if d.Jobs > 1 {
		var g errgroup.Group
		g.SetLimit(d.Jobs)
		for idx, dir := range dirs {
			idx, dir := idx, dir
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}

				outcomes[idx] = d.processDir(ctx, dir, channel)
				done[idx] = true
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for idx, dir := range dirs {
			if ctx.Err() != nil {
				break
			}

			outcomes[idx] = d.processDir(ctx, dir, channel)
			done[idx] = true
		}
	}

	summary := &Summary{Channel: channel}
	for idx, o := range outcomes {
		if done[idx] {
			summary.Outcomes = append(summary.Outcomes, o)
		}
	}

	if err = ctx.Err(); err != nil {
		return summary, err
	}

	return summary, summary.Err()
}

func (d *Driver) processDir(ctx context.Context, dir, channel string) Outcome {
	outcome := d.runDir(ctx, dir, channel)
	if d.OnDone != nil {
		d.OnDone(outcome)
	}

	return outcome
}

func (d *Driver) runDir(ctx context.Context, dir, channel string) Outcome {
	start := time.Now()
	logger := log(ctx).With().Str("dir", dir).Logger()
	logger.Info().Msgf("Processing %s", dir)

	fail := func(err error) Outcome {
		logger.Error().Err(err).Msgf("Fit in %s failed", dir)
		return Outcome{Dir: dir, Status: StatusFailed, Err: err, Duration: time.Since(start)}
	}

	script := filepath.Join(dir, SetupScript)
	info, err := os.Stat(script)
	if err != nil && !eris.Is(err, os.ErrNotExist) {
		return fail(eris.Wrapf(err, "Failed to check %s", script))
	}

	if err != nil || !info.Mode().IsRegular() {
		logger.Warn().Msgf("%s not found in %s, skipping", SetupScript, dir)
		return Outcome{
			Dir:      dir,
			Status:   StatusSkipped,
			Reason:   "missing " + SetupScript,
			Duration: time.Since(start),
		}
	}

	argv := d.Options.Command(channel)
	logger.Info().Bool("command", true).Msg(strings.Join(argv, " "))

	if d.DryRun {
		return Outcome{Dir: dir, Status: StatusSkipped, Reason: "dry run", Duration: time.Since(start)}
	}

	shell := d.Shell
	if shell == nil {
		shell = &ShellRunner{}
	}

	// the interpreter needs an absolute directory and the script path is opened by us
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fail(eris.Wrapf(err, "Failed to resolve %s", dir))
	}

	err = shell.SourceAndRun(ctx, absDir, filepath.Join(absDir, SetupScript), argv)
	if err != nil {
		return fail(err)
	}

	logger.Info().Msgf("Finished %s", dir)
	return Outcome{Dir: dir, Status: StatusSucceeded, Duration: time.Since(start)}
}
