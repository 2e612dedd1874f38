// Package main provides the ringbench CLI tool.
//
// Usage:
//
//	ringbench [flags] <command> [args]
//
// Commands:
//
//	run            - Run a stress scenario against a buffer
//	profile        - Manage saved scenarios
//	history        - Browse recorded reports
//	serve-metrics  - Run a scenario with a Prometheus endpoint
//
// Configuration:
//
//	The CLI stores configuration in ~/.ringbench/ringbench/
//	Use 'ringbench profile' commands to manage profiles.
package main

import (
	"fmt"
	"os"

	"github.com/lincolnyu/qsharp-sub003/cmd/ringbench/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
