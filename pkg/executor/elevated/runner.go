package elevated

import (
	"context"
	"os/exec"

	"github.com/chainburn/chainburn/pkg/executor"
)

// ExecRunner is the CommandRunner used outside of tests: it launches path
// with args under the monitored wait loop, so cancellation stays
// observable while a package's child process runs, and reports the process
// exit code the way a shell-exec handler would.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, path string, args []string) (int, error) {
	res, err := executor.MonitorProcess(ctx, exec.Command(path, args...), executor.MonitorOptions{})
	if err != nil {
		return -1, err
	}
	return res.ExitCode, nil
}
