package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lincolnyu/qsharp-sub003/pkg/cli"
)

const appName = "ringbench"

var (
	// Global flags
	cfgFile      string
	profileName  string
	outputFile   string
	outputFormat string
	verbose      bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ringbench",
	Short: "Stress tool for section-locked ring buffers",
	Long: `ringbench - concurrent stress runs for section-locked ring buffers.

A run starts one writer and several readers on a circular byte buffer or
an append-only chunk ring, checks every byte the readers see against the
written pattern, and prints a report.

Scenarios are saved as profiles in ~/.ringbench/ringbench/config.yaml.

Examples:
  # Run the default scenario
  ringbench run

  # Save a hooky scenario and run it with four readers
  ringbench profile add chunks -f hooky.yaml
  ringbench -p chunks run --readers 4

  # Record the report and list past runs
  ringbench run --record
  ringbench history list
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.ringbench/ringbench/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", string(cli.FormatYAML), "output format: yaml, json, msgpack, raw")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getProfile returns the profile to use: the -p flag, else the current
// profile, else the default scenario.
func getProfile() (*cli.Profile, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return cfg.ResolveProfile(profileName)
}

// newLogger returns a text logger on w, at debug level with --verbose.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: cli.OutputFormat(outputFormat),
		File:   outputFile,
	})
}
