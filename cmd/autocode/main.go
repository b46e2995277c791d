package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/autocode-ai/autocode/pkg/backend/memory"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "autocode",
		Short:   "Autocode — autonomous coding agent harness",
		Version: version,
	}

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newStatsCmd(),
		newCacheCmd(),
		newInitDoneCmd(),
		newCloseIssueCmd(),
		newAuditDoneCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
