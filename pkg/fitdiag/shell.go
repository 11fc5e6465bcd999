package fitdiag

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// SetupScript is sourced in every candidate directory before the fit runs
const SetupScript = "combine_cards.sh"

// ShellRunner sources setup scripts and runs commands in the resulting shell state.
// A fresh interpreter is used for every directory.
type ShellRunner struct {
	// Exec handles every external command; nil uses the interpreter's default handler
	Exec interp.ExecHandlerFunc
	// Env is the initial environment; nil inherits the process environment
	Env         []string
	Stdout      io.Writer
	Stderr      io.Writer
	KillTimeout time.Duration
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

func (s *ShellRunner) newRunner(dir string) (*interp.Runner, error) {
	execHandler := s.Exec
	if execHandler == nil {
		timeout := s.KillTimeout
		if timeout == 0 {
			timeout = 2 * time.Second
		}
		execHandler = interp.DefaultExecHandler(timeout)
	}

	env := s.Env
	if env == nil {
		env = os.Environ()
	}

	stdout := s.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := s.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return nil, eris.Wrap(err, "Failed to initialize runner")
	}

	return runner, nil
}

// literalCall builds a simple command whose words are never re-parsed or expanded
func literalCall(argv []string) *syntax.Stmt {
	call := &syntax.CallExpr{}
	for _, arg := range argv {
		call.Args = append(call.Args, &syntax.Word{
			Parts: []syntax.WordPart{&syntax.SglQuoted{Value: arg}},
		})
	}

	return &syntax.Stmt{Cmd: call}
}

// SetupError is returned when the setup script can't be parsed or returns a non-zero status
type SetupError struct {
	Script string
	Err    error
}

func (e *SetupError) Error() string {
	return "setup script " + e.Script + " failed: " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// SourceAndRun sources script inside dir and then runs argv in the same shell state.
// Like bash's source, a failing command inside the script doesn't stop it; only parse
// errors, interpreter errors and an explicit exit abort the setup.
func (s *ShellRunner) SourceAndRun(ctx context.Context, dir, script string, argv []string) error {
	if len(argv) == 0 {
		return eris.New("no command given")
	}

	runner, err := s.newRunner(dir)
	if err != nil {
		return err
	}

	f, err := os.Open(script)
	if err != nil {
		return &SetupError{Script: script, Err: err}
	}
	defer f.Close()

	file, err := syntax.NewParser().Parse(f, script)
	if err != nil {
		return &SetupError{Script: script, Err: err}
	}

	var lastStatus uint8
	for _, stmt := range file.Stmts {
		err = runner.Run(ctx, stmt)
		lastStatus = 0
		if err != nil {
			status, ok := interp.IsExitStatus(err)
			if !ok {
				return &SetupError{Script: script, Err: err}
			}
			lastStatus = status
		}

		if runner.Exited() {
			return &SetupError{Script: script, Err: eris.Errorf("script called exit (status %d)", lastStatus)}
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	if lastStatus != 0 {
		log(ctx).Warn().
			Str("dir", dir).
			Msgf("%s finished with status %d, running the fit anyway", script, lastStatus)
	}

	err = runner.Run(ctx, literalCall(argv))
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return eris.Errorf("%s exited with status %d", argv[0], status)
		}

		return eris.Wrapf(err, "Failed to run %s", argv[0])
	}

	return nil
}
