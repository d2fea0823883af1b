// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"deskviz/cmd"
	"deskviz/internal/build"
	"deskviz/internal/log"
)

// main wires process concerns only: build info, termination signals and the
// exit code. Capture, analysis and publishing live behind cmd.Execute.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("build info incomplete: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	log.Sync()

	if err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(1)
	}
}
