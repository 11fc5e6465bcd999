package fitdiag

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/interp"
)

type execCall struct {
	Dir  string
	Args []string
	Var  string
}

// recorder stands in for every external command started by the interpreter
type recorder struct {
	lock     sync.Mutex
	calls    []execCall
	failDirs map[string]bool
}

func (r *recorder) handler(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)

	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = append(r.calls, execCall{
		Dir:  hc.Dir,
		Args: append([]string(nil), args...),
		Var:  hc.Env.Get("FITDIAG_TEST_VAR").String(),
	})

	if r.failDirs[filepath.Base(hc.Dir)] {
		return interp.NewExitStatus(1)
	}
	return nil
}

func (r *recorder) fitCalls() []execCall {
	r.lock.Lock()
	defer r.lock.Unlock()

	result := []execCall{}
	for _, c := range r.calls {
		if len(c.Args) > 0 && c.Args[0] == "combine" {
			result = append(result, c)
		}
	}
	return result
}

func mkdirs(t *testing.T, base string, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(base, filepath.FromSlash(dir)), 0o755))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
