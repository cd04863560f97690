package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

// scriptRunner substitutes the python interpreter with /bin/sh so interpreter
// mode can be exercised without python installed.
func scriptRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	return New(zap.NewNop(), WithInterpreter("/bin/sh"), WithTempDir(dir)), dir
}

func assertNoScripts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary script left behind")
}

func TestRunShellSuccess(t *testing.T) {
	skipOnWindows(t)
	r := New(zap.NewNop())

	res, err := r.Run(context.Background(), Request{Code: `printf 'Hello, World!'`})
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "Hello, World!", res.Stdout)
	assert.Equal(t, "Hello, World!", res.Output())
	assert.Empty(t, res.Failure())
}

func TestRunShellFailure(t *testing.T) {
	skipOnWindows(t)
	r := New(zap.NewNop())

	res, err := r.Run(context.Background(), Request{Code: "echo partial; echo 'command not found' >&2; exit 1"})
	require.NoError(t, err, "a non-zero exit is a flagged result, not an error")
	assert.False(t, res.Succeeded)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Contains(t, res.Stderr, "command not found")
	assert.Contains(t, res.Failure(), "Command failed with exit code 1")
	assert.Contains(t, res.Output(), "command not found")
}

func TestRunSuccessDropsStderr(t *testing.T) {
	skipOnWindows(t)
	res, err := New(zap.NewNop()).Run(context.Background(), Request{Code: "echo out; echo warn >&2"})
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Empty(t, res.Stderr)
}

func TestRunPreservesChunkOrder(t *testing.T) {
	skipOnWindows(t)
	res, err := New(zap.NewNop()).Run(context.Background(), Request{
		Code: "for i in 1 2 3 4 5; do printf \"$i\"; sleep 0.01; done",
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", res.Stdout)
}

func TestRunWorkDir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	res, err := New(zap.NewNop()).Run(context.Background(), Request{Code: "pwd -P", WorkDir: dir})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(res.Stdout))
}

func TestRunSpawnError(t *testing.T) {
	r := New(zap.NewNop(), WithShell("/nonexistent/mdrun-shell", "-c"))

	res, err := r.Run(context.Background(), Request{Code: "echo hi"})
	assert.Nil(t, res)
	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "got %v", err)
	assert.Equal(t, "/nonexistent/mdrun-shell", spawnErr.Path)
}

func TestRunTwiceIsIndependent(t *testing.T) {
	skipOnWindows(t)
	r := New(zap.NewNop())
	req := Request{Code: "echo again", WorkDir: t.TempDir()}

	first, err := r.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "again\n", first.Stdout)
	assert.Equal(t, "again\n", second.Stdout, "output must not accumulate across runs")

	first.Stdout = "changed"
	assert.Equal(t, "again\n", second.Stdout)
}

func TestRunScript(t *testing.T) {
	skipOnWindows(t)
	r, dir := scriptRunner(t)

	res, err := r.Run(context.Background(), Request{Code: "echo from script", Interpreter: true})
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "from script\n", res.Stdout)
	assertNoScripts(t, dir)
}

func TestRunScriptNonZeroExitRemovesFile(t *testing.T) {
	skipOnWindows(t)
	r, dir := scriptRunner(t)

	res, err := r.Run(context.Background(), Request{Code: "echo boom >&2\nexit 3", Interpreter: true})
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
	assertNoScripts(t, dir)
}

func TestRunScriptSpawnErrorRemovesFile(t *testing.T) {
	dir := t.TempDir()
	r := New(zap.NewNop(), WithInterpreter("/nonexistent/python3"), WithTempDir(dir))

	_, err := r.Run(context.Background(), Request{Code: "print('hi')", Interpreter: true})
	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "got %v", err)
	assertNoScripts(t, dir)
}

func TestScriptPathUnique(t *testing.T) {
	r := New(zap.NewNop(), WithTempDir("/tmp/mdrun"))
	a, b := r.scriptPath(), r.scriptPath()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(filepath.Base(a), "mdrun-"))
	assert.True(t, strings.HasSuffix(a, ".py"))
}

// undeletableFS writes through to the real file system but refuses deletes.
type undeletableFS struct {
	afs.Service
}

func (undeletableFS) Delete(ctx context.Context, URL string, options ...storage.Option) error {
	return errors.New("permission denied")
}

func TestRunScriptCleanupFailureIsLoggedOnly(t *testing.T) {
	skipOnWindows(t)
	core, logs := observer.New(zapcore.WarnLevel)
	dir := t.TempDir()
	r := New(zap.New(core), WithInterpreter("/bin/sh"), WithTempDir(dir))
	r.fs = undeletableFS{Service: afs.New()}

	res, err := r.Run(context.Background(), Request{Code: "echo kept", Interpreter: true, WorkDir: dir})
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "kept\n", res.Stdout)

	entries := logs.FilterMessage("failed to remove temporary script").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["path"], dir)
}
