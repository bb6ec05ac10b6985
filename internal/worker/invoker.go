package worker

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/codefionn/promptloop/internal/logger"
)

// ExecInvoker runs a worker executable as a subprocess. It merges the
// process's stdout and stderr into one capture buffer and optionally tees
// the stream live to the operator's terminal. The full merged text is
// returned only after the process exits.
type ExecInvoker struct {
	def Definition
	tee io.Writer
}

// NewExecInvoker creates an invoker for the given worker definition.
// tee may be nil to suppress live output.
func NewExecInvoker(def Definition, tee io.Writer) *ExecInvoker {
	return &ExecInvoker{def: def, tee: tee}
}

// Name returns the worker's display name
func (e *ExecInvoker) Name() string {
	return e.def.DisplayName
}

// Invoke runs the worker in workDir with the prompt on stdin and returns
// the merged output. The subprocess exit code is returned as the error but
// callers classify by output text, not by exit status.
func (e *ExecInvoker) Invoke(ctx context.Context, workDir, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, e.def.Executable, e.def.Args...)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(prompt)

	var buf bytes.Buffer
	out := io.Writer(&buf)
	if e.tee != nil {
		out = io.MultiWriter(&buf, e.tee)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Debug("Invoking worker: %s %v (dir=%s, prompt=%d bytes)",
		e.def.Executable, e.def.Args, workDir, len(prompt))

	err := cmd.Run()
	return buf.String(), err
}
