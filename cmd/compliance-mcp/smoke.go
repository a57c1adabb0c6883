package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/compliance-mcp/internal/smoke"
)

func newSmokeCommand() *cobra.Command {
	var (
		host    string
		port    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Check a running server end to end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := fmt.Sprintf("http://%s:%d", host, port)
			sum, err := smoke.Probe{BaseURL: base, Timeout: timeout}.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("smoke test failed: %w", err)
			}
			smoke.Report(cmd.OutOrStdout(), base, sum)
			fmt.Fprintln(cmd.OutOrStdout(), "MCP server test completed successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "Host where the MCP server is running")
	cmd.Flags().IntVar(&port, "port", 8080, "Port where the MCP server is running")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	return cmd
}
