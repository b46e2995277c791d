package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/autocode-ai/autocode/pkg/config"
	"github.com/autocode-ai/autocode/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show backend call usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			session, total, err := tr.Summarize(context.Background())
			if err != nil {
				return err
			}

			if total.TotalCalls == 0 {
				fmt.Println("No call data found.")
				return nil
			}

			fmt.Printf("Calls this session: %d\n", session.TotalCalls)
			fmt.Printf("Calls retained:     %d (last %s)\n\n", total.TotalCalls, tracker.Retention)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tCALLS")
			for _, op := range sortedKeys(total.Operations) {
				fmt.Fprintf(w, "%s\t%d\n", op, total.Operations[op])
			}
			fmt.Fprintln(w, "\nENDPOINT\tCALLS")
			for _, ep := range sortedKeys(total.Endpoints) {
				fmt.Fprintf(w, "%s\t%d\n", ep, total.Endpoints[ep])
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if cfg.Backend.RateLimit != nil {
				n, err := tr.CountInWindow(cfg.Backend.RateLimit.Window)
				if err != nil {
					return err
				}
				fmt.Printf("\nWindow usage: %d/%d over %s\n", n, cfg.Backend.RateLimit.MaxRequests, cfg.Backend.RateLimit.Window)

				approaching, err := tr.IsApproachingLimit(*cfg.Backend.RateLimit, 0.1)
				if err != nil {
					return err
				}
				if approaching {
					fmt.Println("Warning: approaching the backend rate limit")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
