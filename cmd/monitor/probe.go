package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/probe"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run a single check against a target and print the result",
	Long: `probe executes one HTTP, TCP, ping or DNS check without touching the
database. It uses the same executors as the scheduler.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		check, err := checkFromFlags()
		if err != nil {
			return err
		}
		check.ID = "adhoc"
		check.Name = check.Target

		registry := probe.NewDefaultRegistry(probe.Config{
			UserAgent: cfg.Probes.UserAgent,
			ICMP: probe.ICMPConfig{
				Packets:    cfg.Probes.PingPackets,
				Interval:   cfg.Probes.PingInterval,
				Privileged: cfg.Probes.PingPrivileged,
			},
		})
		result := registry.Execute(cmd.Context(), check)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status:   %s\n", result.Status)
		fmt.Fprintf(out, "time:     %dms\n", result.ResponseTimeMs)
		if result.StatusCode != nil {
			fmt.Fprintf(out, "code:     %d\n", *result.StatusCode)
		}
		if result.SSLExpiryDate != nil {
			fmt.Fprintf(out, "cert:     expires %s (%s)\n",
				result.SSLExpiryDate.UTC().Format(time.DateOnly), humanize.Time(*result.SSLExpiryDate))
		}
		if result.ResponseBody != "" && check.Type != domain.CheckTypeHTTP {
			fmt.Fprintf(out, "answer:   %s\n", result.ResponseBody)
		}
		if result.ErrorMessage != "" {
			fmt.Fprintf(out, "error:    %s\n", result.ErrorMessage)
		}
		return nil
	},
}

func init() {
	addCheckFlags(probeCmd)
	rootCmd.AddCommand(probeCmd)
}
