package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohamedbenhasan1/VRUGuard/internal/scenario"
)

var (
	version   = "0.1.0-dev"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vruguard",
		Short: "Vulnerable road user safety simulator",
		Long: `vruguard simulates pedestrians, cyclists and other vulnerable road users
around a geographic origin, fuses their positioning sensors, classifies
collision risk every tick and streams the results to a renderer.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
		newValidateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			logLevel, _ := cmd.Flags().GetString("log-level")
			console, _ := cmd.Flags().GetBool("console")

			a, err := newApp(appOptions{
				ConfigDir: configDir,
				LogLevel:  logLevel,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if console {
				go func() {
					runConsole(ctx, os.Stdin, cmd.OutOrStdout(), a.dispatcher)
					stop()
				}()
			}

			return a.run(ctx)
		},
	}

	cmd.Flags().String("config-dir", ".", "Directory containing vruguard.cfg.json")
	cmd.Flags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().Bool("console", false, "Read operator commands from stdin")
	return cmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"version":   version,
					"buildDate": buildDate,
				})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vruguard version %s (%s)\n", version, buildDate)
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			random := 0
			for _, p := range s.Population {
				random += p.Count
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %q ok: %d random agents, %d placed agents, user override %t\n",
				s.Name, random, len(s.Agents), s.User != nil)
			return nil
		},
	}
}
