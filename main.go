/*
main.go

Copyright © 2025 Code Monkey Cybersecurity
Contact: git@cybermonkey.net.au

This file is part of regen.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/cmd"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
)

func main() {
	logger.InitializeWithFallback()
	if err := telemetry.Init("regen"); err != nil {
		fmt.Fprintf(os.Stderr, "Telemetry disabled: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := telemetry.Shutdown(shutdown); err != nil {
		fmt.Fprintf(os.Stderr, "Telemetry shutdown failed: %v\n", err)
	}
	cancel()
	os.Exit(code)
}
