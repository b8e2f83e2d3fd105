package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/rpc"
)

// companionElevator forks the engine's own executable with -burn.elevated
// and speaks the privileged rpc.Conn protocol over its inherited stdin/
// stdout, the same relaunch-yourself pattern main.go's role dispatch is
// built around (§4.6 Elevated run mode).
type companionElevator struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	conn   *rpc.Conn
	logger zerolog.Logger
}

func newCompanionElevator(logger zerolog.Logger) *companionElevator {
	return &companionElevator{logger: logger}
}

// Connected implements executor.Elevator.
func (e *companionElevator) Connected() bool {
	return e.conn != nil
}

// Connect implements executor.Elevator: it spawns the companion process and
// wires an rpc.Conn over its stdio pipes. Later elevated requests fail if
// the companion exits, surfacing as an RPC read/write error rather than a
// silent hang.
func (e *companionElevator) Connect(ctx context.Context) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("elevator: resolve self path: %w", err)
	}

	cmd := exec.CommandContext(ctx, self, "-burn.elevated=true")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("elevator: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("elevator: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("elevator: start companion: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.conn = rpc.NewConn(stdioPipe{Reader: stdout, Writer: stdin})
	e.logger.Info().Int("pid", cmd.Process.Pid).Msg("elevated companion connected")
	return nil
}

// Close terminates the companion by closing its command pipe, letting it
// drain and exit on its own rather than killing it outright.
func (e *companionElevator) Close() error {
	if e.cmd == nil {
		return nil
	}
	_ = e.stdin.Close()
	return e.cmd.Wait()
}
