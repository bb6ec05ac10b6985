package worker

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellDef returns a definition that runs script through sh, standing in
// for a real agent CLI.
func shellDef(t *testing.T, script string) Definition {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return Definition{
		Kind:        "test-shell",
		DisplayName: "test-shell",
		Executable:  "sh",
		Args:        []string{"-c", script},
	}
}

func TestInvokeDeliversPromptOnStdin(t *testing.T) {
	inv := NewExecInvoker(shellDef(t, "cat"), nil)

	out, err := inv.Invoke(context.Background(), t.TempDir(), "implement US-1\n")
	require.NoError(t, err)
	assert.Equal(t, "implement US-1\n", out)
}

func TestInvokeMergesStdoutAndStderr(t *testing.T) {
	inv := NewExecInvoker(shellDef(t, "echo out; echo err 1>&2"), nil)

	out, err := inv.Invoke(context.Background(), t.TempDir(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")
}

func TestInvokeRunsInWorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("here"), 0644))

	inv := NewExecInvoker(shellDef(t, "cat marker.txt"), nil)
	out, err := inv.Invoke(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, "here", out)
}

func TestInvokeReturnsOutputWithExitError(t *testing.T) {
	inv := NewExecInvoker(shellDef(t, "echo partial; exit 3"), nil)

	out, err := inv.Invoke(context.Background(), t.TempDir(), "")
	assert.Error(t, err)
	assert.Contains(t, out, "partial", "output is kept even when the worker fails")
}

func TestInvokeTeesLiveOutput(t *testing.T) {
	var tee bytes.Buffer
	inv := NewExecInvoker(shellDef(t, "echo streamed"), &tee)

	out, err := inv.Invoke(context.Background(), t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, out, tee.String())
}

func TestInvokeHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	inv := NewExecInvoker(shellDef(t, "sleep 10"), nil)
	_, err := inv.Invoke(ctx, t.TempDir(), "")
	assert.Error(t, err)
}

func TestCheckDependenciesMissingWorker(t *testing.T) {
	err := CheckDependencies(Definition{
		Kind:       "missing",
		Executable: "definitely-not-a-real-binary-xyz",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found on PATH")
}
