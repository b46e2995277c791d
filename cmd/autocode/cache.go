package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	cachepkg "github.com/autocode-ai/autocode/pkg/cache/sqlite"
	"github.com/autocode-ai/autocode/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			c, err := cachepkg.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries:       %d\n", stats.Entries)
			fmt.Printf("Hits:          %d\n", stats.Hits)
			fmt.Printf("Misses:        %d\n", stats.Misses)
			fmt.Printf("Sets:          %d\n", stats.Sets)
			fmt.Printf("Invalidations: %d\n", stats.Invalidations)
			fmt.Printf("Hit rate:      %.1f%%\n", stats.HitRate*100)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			c, err := cachepkg.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(expiredOnly); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Println("Expired cache entries cleared.")
			} else {
				fmt.Println("All cache entries cleared.")
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "List cache entries with age and remaining TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			c, err := cachepkg.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			infos, err := c.List()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tHITS\tAGE\tREMAINING\tSIZE")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n",
					info.Key, info.HitCount, info.Age.Round(time.Second), info.RemainingTTL.Round(time.Second), info.Size)
			}
			return w.Flush()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, entriesCmd)
	return cmd
}
