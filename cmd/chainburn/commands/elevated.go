package commands

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/approval"
	"github.com/chainburn/chainburn/pkg/executor/elevated"
	"github.com/chainburn/chainburn/pkg/rpc"
	"github.com/chainburn/chainburn/pkg/telemetry"
)

// stdioPipe adapts the process's own stdin/stdout into one io.ReadWriter,
// the pipe the elevated companion inherits from its parent at spawn time.
type stdioPipe struct {
	io.Reader
	io.Writer
}

// RunElevatedCompanion runs the current process as the elevated companion
// (§4.6 Elevated run mode): it answers privileged requests from the parent
// engine process over the inherited stdin/stdout pipe until the parent
// closes it.
func RunElevatedCompanion(ctx context.Context) error {
	conn := rpc.NewConn(stdioPipe{Reader: os.Stdin, Writer: os.Stdout})

	// Stdout carries the command protocol; log lines travel the inherited
	// stderr pipe back to the parent's sink, serialised through the
	// redirect pump so concurrent handlers can't interleave half-lines.
	redirect := telemetry.NewLogRedirector(os.Stderr)
	defer redirect.Close(telemetry.ElevatedLogShutdownWait)
	logger := zerolog.New(redirect).With().Timestamp().Str("role", "elevated").Logger()

	approvalEngine, err := approval.NewEngine(logger)
	if err != nil {
		return err
	}

	cacheRoot := os.Getenv("CHAINBURN_CACHE_ROOT")
	if cacheRoot == "" {
		cacheRoot = "/var/cache/chainburn"
	}
	depRoot := os.Getenv("CHAINBURN_DEPENDENTS_ROOT")
	if depRoot == "" {
		depRoot = "/var/lib/chainburn/dependents"
	}

	server := elevated.NewServer(
		conn,
		elevated.ExecRunner{},
		&elevated.FileCacheStore{Root: cacheRoot},
		&elevated.FileRegistrationStore{Root: depRoot},
		approvalEngine,
		logger,
	)

	return server.Serve(ctx)
}
