package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lincolnyu/qsharp-sub003/pkg/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded reports",
	Long: `Browse the reports stored by 'ringbench run --record'.

The history of the selected profile is used; see 'ringbench profile add
--history-dir'.`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("failed to read 'limit' flag: %w", err)
		}
		p, err := getProfile()
		if err != nil {
			return err
		}
		store, err := openHistory(p)
		if err != nil {
			return err
		}
		defer store.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tMODE\tELAPSED\tWRITTEN\tRATE\tCHECK")
		n := 0
		for e, err := range store.List(cmd.Context()) {
			if err != nil {
				return err
			}
			if limit > 0 && n == limit {
				break
			}
			n++

			r := e.Report
			check := "ok"
			if r.Check() != nil {
				check = "FAILED"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.ID,
				r.Started.Local().Format("2006-01-02 15:04:05"), r.Scenario.Mode,
				cli.FormatDuration(r.Elapsed), cli.FormatBytes(r.Writer.Bytes),
				cli.FormatRate(r.WriteRate()), check)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if n == 0 {
			cli.PrintInfo("No recorded runs")
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := getProfile()
		if err != nil {
			return err
		}
		store, err := openHistory(p)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return outputResult(r)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recorded report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := getProfile()
		if err != nil {
			return err
		}
		store, err := openHistory(p)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Run %s deleted", args[0])
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}
