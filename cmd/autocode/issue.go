package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autocode-ai/autocode/pkg/config"
)

// These commands are invoked by the agent from inside a session to report
// progress back to the harness, so the bookkeeping lives in one place instead
// of being re-derived from agent output.

func newInitDoneCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		metaIssue  string
		total      int
	)

	cmd := &cobra.Command{
		Use:   "init-done",
		Short: "Record that project initialization completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if projectID == "" {
				return fmt.Errorf("--project-id is required")
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sched.MarkInitialized(cfg.Backend.Name, projectID, metaIssue, total); err != nil {
				return err
			}
			fmt.Printf("Initialized: project %s, %d issues\n", projectID, total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.Flags().StringVar(&projectID, "project-id", "", "backend project ID")
	cmd.Flags().StringVar(&metaIssue, "meta-issue", "", "META issue ID")
	cmd.Flags().IntVar(&total, "total", 0, "number of issues created")
	return cmd
}

func newCloseIssueCmd() *cobra.Command {
	var (
		configPath string
		comment    string
	)

	cmd := &cobra.Command{
		Use:   "close-issue <issue-id>",
		Short: "Mark an issue done and queue it for audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sched.CloseIssueForAudit(cmd.Context(), a.client, args[0], comment); err != nil {
				return err
			}

			st, err := a.sched.Store().Load()
			if err != nil {
				return err
			}
			fmt.Printf("Closed %s. Awaiting audit: %d/%d\n", args[0], st.PendingAudit(), a.sched.Threshold())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.Flags().StringVar(&comment, "comment", "", "completion summary to post on the issue")
	return cmd
}

func newAuditDoneCmd() *cobra.Command {
	var (
		configPath string
		passed     int
	)

	cmd := &cobra.Command{
		Use:   "audit-done",
		Short: "Record the results of an audit session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sched.ResolveAudited(passed); err != nil {
				return err
			}
			// Trust the backend's labels over our own arithmetic.
			if err := a.sched.Reconcile(cmd.Context(), a.client); err != nil {
				return err
			}

			st, err := a.sched.Store().Load()
			if err != nil {
				return err
			}
			fmt.Printf("Audit recorded. Awaiting audit: %d, audits completed: %d\n", st.PendingAudit(), st.AuditsCompleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.Flags().IntVar(&passed, "passed", 0, "number of issues that passed audit")
	return cmd
}
