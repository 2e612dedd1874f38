// Package cli provides the shared pieces of the ringbench command-line
// tool.
//
// This package includes:
//   - Configuration management (named scenario profiles)
//   - Scenario file loading (YAML/JSON)
//   - Output formatting (YAML, JSON, MessagePack)
//   - Human readable byte, rate and duration formatting
//   - A live dashboard and a log line ring for it
//
// Configuration is stored in ~/.ringbench/<app>/ directory, supporting
// multiple profiles similar to kubectl contexts.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("ringbench")
//
//	// Profile given by flag, or the current one
//	p, err := cfg.ResolveProfile(name)
//
//	sc, err := cli.LoadScenario("scenario.yaml", p.Scenario)
//
//	cli.Output(report, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
