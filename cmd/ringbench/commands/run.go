package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lincolnyu/qsharp-sub003/pkg/cli"
	"github.com/lincolnyu/qsharp-sub003/pkg/runlog"
	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

var (
	scenarioFile string
	record       bool
	live         bool
)

const (
	liveRefresh  = 250 * time.Millisecond
	liveWidth    = 100
	liveLogLines = 8
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a stress scenario",
	Long: `Run a stress scenario and print its report.

The scenario comes from the profile, then the -f file, then the flags.
The command fails if any reader saw data out of order or never wrapped
around the buffer.

Example:
  ringbench run --mode hooky --rtp --duration 5s
  ringbench run -f scenario.yaml --format json -o report.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := getProfile()
		if err != nil {
			return err
		}
		sc, err := resolveScenario(cmd, p)
		if err != nil {
			return err
		}
		return runScenario(cmd, p, sc)
	},
}

func init() {
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&record, "record", false, "store the report in the run history")
	runCmd.Flags().BoolVar(&live, "live", false, "show a live dashboard on stderr")
}

// addScenarioFlags adds the flags that override scenario fields.
func addScenarioFlags(cmd *cobra.Command) {
	def := stress.DefaultScenario()
	cmd.Flags().StringVarP(&scenarioFile, "file", "f", "", "scenario file (YAML or JSON, - for stdin)")
	cmd.Flags().String("mode", string(def.Mode), "buffer under test: circular or hooky")
	cmd.Flags().Duration("duration", def.Duration, "how long the writer runs")
	cmd.Flags().Int("readers", def.Readers, "number of concurrent readers")
	cmd.Flags().Bool("rtp", false, "feed hooky chunks through RTP packets")
	cmd.Flags().Bool("preserve", def.Preserve, "keep the last read lock between reads")
}

// resolveScenario layers the -f file and the changed flags over the
// profile's scenario.
func resolveScenario(cmd *cobra.Command, p *cli.Profile) (stress.Scenario, error) {
	sc := p.Scenario
	if scenarioFile != "" {
		var err error
		if sc, err = cli.LoadScenario(scenarioFile, sc); err != nil {
			return sc, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		mode, _ := flags.GetString("mode")
		sc.Mode = stress.Mode(mode)
	}
	if flags.Changed("duration") {
		sc.Duration, _ = flags.GetDuration("duration")
	}
	if flags.Changed("readers") {
		sc.Readers, _ = flags.GetInt("readers")
	}
	if flags.Changed("rtp") {
		sc.RTP, _ = flags.GetBool("rtp")
	}
	if flags.Changed("preserve") {
		sc.Preserve, _ = flags.GetBool("preserve")
	}
	return sc, sc.Validate()
}

// runScenario runs sc until it ends or the process is interrupted, then
// prints and optionally records the report.
func runScenario(cmd *cobra.Command, p *cli.Profile, sc stress.Scenario, opts ...stress.Option) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var log *slog.Logger
	if live {
		logs, err := cli.NewLogWriter(liveLogLines * 4)
		if err != nil {
			return err
		}
		log = newLogger(logs)
		dash := cli.Dashboard{
			Styles:   cli.NewStyles(cli.DefaultTheme),
			Scenario: sc,
			Logs:     logs.Lines,
			LogLines: liveLogLines,
		}
		opts = append(opts, stress.WithProgress(liveRefresh, func(s stress.Snapshot) {
			fmt.Fprint(os.Stderr, "\033[H\033[2J"+dash.Render(s, liveWidth)+"\n")
		}))
	} else {
		log = newLogger(os.Stderr)
	}
	opts = append(opts, stress.WithLogger(log))

	log.Debug("starting run", "mode", sc.Mode, "readers", sc.Readers, "duration", sc.Duration)
	report, err := stress.Run(ctx, sc, opts...)
	if err != nil {
		return err
	}

	if record || p.Record {
		if err := saveReport(ctx, p, report); err != nil {
			return err
		}
		cli.PrintSuccess("Recorded run %s", report.ID)
	}

	if err := outputResult(report); err != nil {
		return err
	}
	if err := report.Check(); err != nil {
		return fmt.Errorf("run %s failed: %w", report.ID, err)
	}
	return nil
}

// openHistory opens the profile's run history.
func openHistory(p *cli.Profile) (*runlog.Store, error) {
	dir := p.HistoryDir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureHistoryDir(); err != nil {
			return nil, err
		}
		dir = paths.HistoryDir()
	}
	return runlog.Open(runlog.Options{Dir: dir, Logger: newLogger(os.Stderr)})
}

func saveReport(ctx context.Context, p *cli.Profile, r *stress.Report) error {
	store, err := openHistory(p)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Save(ctx, r)
	return err
}
