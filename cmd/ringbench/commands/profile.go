package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lincolnyu/qsharp-sub003/pkg/cli"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved scenarios",
	Long: `Manage profiles: named scenarios with their run settings.

Configuration is stored in ~/.ringbench/ringbench/config.yaml`,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a profile",
	Long: `Add a profile with the specified name.

The scenario starts from the defaults, then the -f file, then the
scenario flags.

Example:
  ringbench profile add chunks --mode hooky --readers 4
  ringbench profile add soak -f soak.yaml --record --history-dir /var/lib/ringbench`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		p := cli.NewProfile(name)
		sc, err := resolveScenario(cmd, p)
		if err != nil {
			return err
		}
		p.Scenario = sc

		if p.Record, err = cmd.Flags().GetBool("record"); err != nil {
			return fmt.Errorf("failed to read 'record' flag: %w", err)
		}
		if p.HistoryDir, err = cmd.Flags().GetString("history-dir"); err != nil {
			return fmt.Errorf("failed to read 'history-dir' flag: %w", err)
		}
		if p.MetricsAddr, err = cmd.Flags().GetString("metrics-addr"); err != nil {
			return fmt.Errorf("failed to read 'metrics-addr' flag: %w", err)
		}

		if err := getConfig().AddProfile(name, p); err != nil {
			return err
		}
		cli.PrintSuccess("Profile %q added", name)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := getConfig().DeleteProfile(name); err != nil {
			return err
		}
		cli.PrintSuccess("Profile %q deleted", name)
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := getConfig().UseProfile(name); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to profile %q", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		names := cfg.ListProfiles()
		if len(names) == 0 {
			fmt.Println("No profiles configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tMODE\tREADERS\tDURATION\tRECORD")
		for _, name := range names {
			p := cfg.Profiles[name]
			current := ""
			if name == cfg.CurrentProfile {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n", current, name,
				p.Scenario.Mode, p.Scenario.Readers, cli.FormatDuration(p.Scenario.Duration), p.Record)
		}
		return w.Flush()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile (default: the current one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := profileName
		if len(args) == 1 {
			name = args[0]
		}
		p, err := getConfig().ResolveProfile(name)
		if err != nil {
			return err
		}
		return outputResult(p)
	},
}

func init() {
	addScenarioFlags(profileAddCmd)
	profileAddCmd.Flags().Bool("record", false, "record every run of the profile")
	profileAddCmd.Flags().String("history-dir", "", "run history directory (default: ~/.ringbench/ringbench/history)")
	profileAddCmd.Flags().String("metrics-addr", "", "listen address for serve-metrics")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
}
