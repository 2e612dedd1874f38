package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lincolnyu/qsharp-sub003/pkg/cli"
	"github.com/lincolnyu/qsharp-sub003/pkg/metrics"
	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

const defaultMetricsAddr = ":9090"

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Run a scenario with a Prometheus endpoint",
	Long: `Run a stress scenario while serving its lock and buffer metrics on
/metrics.

The listen address comes from --addr, then the profile's metrics_addr,
then :9090.

Example:
  ringbench serve-metrics --addr :9100 --duration 1m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := getProfile()
		if err != nil {
			return err
		}
		sc, err := resolveScenario(cmd, p)
		if err != nil {
			return err
		}

		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return fmt.Errorf("failed to read 'addr' flag: %w", err)
		}
		if !cmd.Flags().Changed("addr") && p.MetricsAddr != "" {
			addr = p.MetricsAddr
		}

		prom := metrics.NewPrometheus(metrics.DefaultNamespace)
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.Serve(ln) }()
		cli.PrintInfo("Serving metrics on http://%s/metrics", ln.Addr())

		runErr := runScenario(cmd, p, sc, stress.WithRecorder(prom), stress.WithLockObserver(prom))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return runErr
	},
}

func init() {
	addScenarioFlags(serveMetricsCmd)
	serveMetricsCmd.Flags().String("addr", defaultMetricsAddr, "listen address")
	serveMetricsCmd.Flags().BoolVar(&record, "record", false, "store the report in the run history")
}
