// Package main implements the chainburn engine binary. One executable plays
// five different roles depending on the flags it was relaunched with (§4.6):
// Normal, Untrusted (clean room), Elevated (privileged companion), Embedded
// (driven by a parent bundle), and RunOnce.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chainburn/chainburn/cmd/chainburn/commands"
	"github.com/chainburn/chainburn/pkg/executor"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received interrupt signal, shutting down")
		cancel()
	}()

	// Role dispatch happens on raw argv before cobra parses anything
	// (§4.6): the elevated companion and the clean-room/runonce relaunch
	// paths never see a flag parser at all, and the embedded role only
	// configures its parent channel before falling through to the normal
	// command surface.
	switch executor.SelectRunMode(os.Args[1:]) {
	case executor.RunModeElevated:
		if err := commands.RunElevatedCompanion(ctx); err != nil {
			log.Error().Err(err).Msg("elevated companion exited with error")
			os.Exit(1)
		}
		return
	case executor.RunModeUntrusted:
		if err := commands.RunCleanRoom(ctx); err != nil {
			log.Error().Err(err).Msg("clean room relaunch failed")
			os.Exit(1)
		}
		return
	case executor.RunModeRunOnce:
		if err := commands.RunRunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("runonce resume failed")
			os.Exit(1)
		}
		return
	case executor.RunModeEmbedded:
		if err := commands.ConfigureEmbedded(embeddedArg(os.Args[1:])); err != nil {
			log.Error().Err(err).Msg("embedded launch rejected")
			os.Exit(1)
		}
	}

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("command execution failed")
		os.Exit(1)
	}
}

// embeddedArg finds the -burn.embedded switch SelectRunMode already
// matched, so ConfigureEmbedded can validate its pipe spec.
func embeddedArg(args []string) string {
	for _, a := range args {
		if strings.HasPrefix(a, "-burn.embedded") {
			return a
		}
	}
	return ""
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
