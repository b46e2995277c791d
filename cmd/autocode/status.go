package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autocode-ai/autocode/pkg/config"
	"github.com/autocode-ai/autocode/pkg/scheduler"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project state and the next session mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			sched := scheduler.New(scheduler.NewStore(cfg.StatePath), cfg.Audit.Threshold)
			mode, st, err := sched.Decide()
			if err != nil {
				return err
			}

			if !st.Initialized {
				fmt.Println("Project: not initialized")
			} else {
				fmt.Printf("Project:          %s (%s)\n", st.ProjectID, st.AdapterType)
				fmt.Printf("META issue:       %s\n", st.MetaIssueID)
				fmt.Printf("Total issues:     %d\n", st.TotalIssues)
				fmt.Printf("Awaiting audit:   %d (threshold %d)\n", st.PendingAudit(), sched.Threshold())
				fmt.Printf("Audits completed: %d\n", st.AuditsCompleted)
			}
			fmt.Printf("Next session:     %s\n", mode)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	return cmd
}
