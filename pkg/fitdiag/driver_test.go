package fitdiag

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportScript = "export FITDIAG_TEST_VAR=from-setup\n"

func testDriver(rec *recorder) *Driver {
	d := NewDriver()
	d.Shell = &ShellRunner{
		Exec:   rec.handler,
		Env:    []string{"PATH=" + os.Getenv("PATH")},
		Stdout: io.Discard,
		Stderr: io.Discard,
	}
	return d
}

func testCtx() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

// testTree creates three candidate directories; only a and c have a setup script
func testTree(t *testing.T) (string, []string) {
	base := t.TempDir()
	dirs := []string{
		filepath.Join(base, "2022_preEE", "pt", "tau21_a"),
		filepath.Join(base, "2022_preEE", "pt", "tau21_b"),
		filepath.Join(base, "2023_preBPix", "pt", "tau21_c"),
	}
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	writeFile(t, filepath.Join(dirs[0], SetupScript), exportScript)
	writeFile(t, filepath.Join(dirs[2], SetupScript), exportScript)

	return base, dirs
}

func TestRunUsage(t *testing.T) {
	rec := &recorder{}
	d := testDriver(rec)

	cases := [][2]string{{"", "SR"}, {"/does/not/exist", ""}, {"", ""}}
	for _, c := range cases {
		summary, err := d.Run(testCtx(), c[0], c[1])
		assert.True(t, eris.Is(err, ErrUsage), "expected usage error for %q", c)
		assert.Nil(t, summary)
	}

	assert.Empty(t, rec.calls)
}

func TestRunNoMatches(t *testing.T) {
	rec := &recorder{}
	summary, err := testDriver(rec).Run(testCtx(), t.TempDir(), "SR")
	require.NoError(t, err)
	assert.Empty(t, summary.Outcomes)
	assert.Empty(t, rec.calls)
}

func TestRunProcessesEveryDirectory(t *testing.T) {
	base, dirs := testTree(t)
	rec := &recorder{}

	wd, err := os.Getwd()
	require.NoError(t, err)

	summary, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.NoError(t, err)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, after)

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, StatusSucceeded, summary.Outcomes[0].Status)
	assert.Equal(t, StatusSkipped, summary.Outcomes[1].Status)
	assert.Equal(t, dirs[1], summary.Outcomes[1].Dir)
	assert.Equal(t, "missing "+SetupScript, summary.Outcomes[1].Reason)
	assert.Equal(t, StatusSucceeded, summary.Outcomes[2].Status)

	calls := rec.fitCalls()
	require.Len(t, calls, 2)
	for idx, dir := range []string{dirs[0], dirs[2]} {
		assert.Equal(t, dir, calls[idx].Dir)
		assert.Equal(t, "from-setup", calls[idx].Var)
		assert.Equal(t, DefaultFitOptions().Command("SR"), calls[idx].Args)
		assert.Contains(t, calls[idx].Args, ".msd-80to170_Pt-300toInf_particleNet_XbbVsQCD-SR")
	}
}

func TestRunSetupScriptChangesDirectory(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "2022_preEE", "pt", "tau21_a")
	mkdirs(t, dir, "cards")
	writeFile(t, filepath.Join(dir, SetupScript), "cd cards\nexport FITDIAG_TEST_VAR=cards\n")

	rec := &recorder{}
	_, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.NoError(t, err)

	calls := rec.fitCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, filepath.Join(dir, "cards"), calls[0].Dir)
	assert.Equal(t, "cards", calls[0].Var)
}

func TestRunSetupCommandsUseExecHandler(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "2022_preEE", "pt", "tau21_a")
	writeFile(t, filepath.Join(dir, SetupScript), "combineCards.py -o card.txt pass.txt fail.txt\ntext2workspace.py card.txt -o workspace.root\n")

	rec := &recorder{}
	_, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.NoError(t, err)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, "combineCards.py", rec.calls[0].Args[0])
	assert.Equal(t, "text2workspace.py", rec.calls[1].Args[0])
	assert.Equal(t, "combine", rec.calls[2].Args[0])
}

func TestRunFitFailureContinues(t *testing.T) {
	base, dirs := testTree(t)
	rec := &recorder{failDirs: map[string]bool{"tau21_a": true}}

	summary, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.Error(t, err)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{dirs[0]}, failed.Dirs)

	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Count(StatusFailed))
	assert.Equal(t, 1, summary.Count(StatusSkipped))
	assert.Equal(t, 1, summary.Count(StatusSucceeded))
	assert.Len(t, rec.fitCalls(), 2)
	assert.Contains(t, summary.Outcomes[0].Err.Error(), "exited with status 1")
}

func TestRunSetupFailureSkipsFit(t *testing.T) {
	base := t.TempDir()
	unclosed := filepath.Join(base, "2022_preEE", "pt", "tau21_a")
	exited := filepath.Join(base, "2022_preEE", "pt", "tau21_b")
	writeFile(t, filepath.Join(unclosed, SetupScript), "if true; then\n")
	writeFile(t, filepath.Join(exited, SetupScript), "export FITDIAG_TEST_VAR=x\nexit 0\necho unreachable\n")

	rec := &recorder{}
	summary, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.Error(t, err)
	assert.Equal(t, 2, summary.Count(StatusFailed))
	assert.Empty(t, rec.fitCalls())

	for _, o := range summary.Outcomes {
		var setupErr *SetupError
		assert.ErrorAs(t, o.Err, &setupErr)
	}
}

func TestRunFailingSetupCommandStillFits(t *testing.T) {
	base := t.TempDir()
	trailing := filepath.Join(base, "2022_preEE", "pt", "tau21_a")
	midway := filepath.Join(base, "2022_preEE", "pt", "tau21_b")
	writeFile(t, filepath.Join(trailing, SetupScript),
		"text2workspace.py card.txt -o workspace.root\n[ -n \"$KEEP_TMP\" ] && echo keep\n")
	writeFile(t, filepath.Join(midway, SetupScript), "false\nexport FITDIAG_TEST_VAR=after-false\n")

	rec := &recorder{}
	summary, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count(StatusSucceeded))

	calls := rec.fitCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, trailing, calls[0].Dir)
	assert.Equal(t, midway, calls[1].Dir)
	assert.Equal(t, "after-false", calls[1].Var)
}

func TestRunSetupScriptMustBeAFile(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "2022_preEE", "pt", "tau21_a")
	mkdirs(t, dir, SetupScript)

	rec := &recorder{}
	summary, err := testDriver(rec).Run(testCtx(), base, "SR")
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StatusSkipped, summary.Outcomes[0].Status)
	assert.Empty(t, rec.calls)
}

func TestRunReportsTotal(t *testing.T) {
	base, _ := testTree(t)
	d := testDriver(&recorder{})

	totals := []int{}
	d.OnStart = func(total int) {
		totals = append(totals, total)
	}

	_, err := d.Run(testCtx(), base, "SR")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, totals)
}

func TestRunIsRepeatable(t *testing.T) {
	base, _ := testTree(t)

	first := &recorder{}
	s1, err := testDriver(first).Run(testCtx(), base, "SR")
	require.NoError(t, err)

	second := &recorder{}
	s2, err := testDriver(second).Run(testCtx(), base, "SR")
	require.NoError(t, err)

	assert.Equal(t, first.fitCalls(), second.fitCalls())
	require.Len(t, s2.Outcomes, len(s1.Outcomes))
	for idx := range s1.Outcomes {
		assert.Equal(t, s1.Outcomes[idx].Dir, s2.Outcomes[idx].Dir)
		assert.Equal(t, s1.Outcomes[idx].Status, s2.Outcomes[idx].Status)
	}
}

func TestRunParallelKeepsOrder(t *testing.T) {
	base := t.TempDir()
	var dirs []string
	for _, name := range []string{"tau21_0p20", "tau21_0p25", "tau21_0p30", "tau21_0p35", "tau21_0p40"} {
		dir := filepath.Join(base, "2022_postEE", "pt", name)
		writeFile(t, filepath.Join(dir, SetupScript), exportScript)
		dirs = append(dirs, dir)
	}

	rec := &recorder{}
	d := testDriver(rec)
	d.Jobs = 3

	var seen atomic.Int32
	d.OnDone = func(Outcome) {
		seen.Add(1)
	}

	summary, err := d.Run(testCtx(), base, "SR")
	require.NoError(t, err)
	assert.EqualValues(t, 5, seen.Load())
	require.Len(t, summary.Outcomes, 5)
	for idx, dir := range dirs {
		assert.Equal(t, dir, summary.Outcomes[idx].Dir)
		assert.Equal(t, StatusSucceeded, summary.Outcomes[idx].Status)
	}
	assert.Len(t, rec.fitCalls(), 5)
}

func TestRunDryRun(t *testing.T) {
	base, _ := testTree(t)
	rec := &recorder{}
	d := testDriver(rec)
	d.DryRun = true

	summary, err := d.Run(testCtx(), base, "SR")
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
	assert.Equal(t, 3, summary.Count(StatusSkipped))
	assert.Equal(t, "dry run", summary.Outcomes[0].Reason)
}

func TestRunCancelled(t *testing.T) {
	base, _ := testTree(t)
	rec := &recorder{}

	ctx, cancel := context.WithCancel(testCtx())
	cancel()

	summary, err := testDriver(rec).Run(ctx, base, "SR")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Outcomes)
	assert.Empty(t, rec.calls)
}

func TestRunInvalidOptions(t *testing.T) {
	rec := &recorder{}
	d := testDriver(rec)
	d.Options.Binary = ""

	_, err := d.Run(testCtx(), t.TempDir(), "SR")
	assert.Error(t, err)
}
