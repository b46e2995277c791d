package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autocode-ai/autocode/pkg/config"
	"github.com/autocode-ai/autocode/pkg/harness"
)

func newRunCmd() *cobra.Command {
	var (
		configPath    string
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the autonomous session loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if maxIterations > 0 {
				cfg.Session.MaxIterations = maxIterations
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.client.TestConnection(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner := &harness.ExecRunner{Command: cfg.Session.AgentCommand}
			h := harness.New(cfg, a.client, a.sched, runner)
			return h.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "stop after N sessions (0 = unlimited)")
	return cmd
}
