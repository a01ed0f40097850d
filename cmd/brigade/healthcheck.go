package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/health"
	"github.com/spf13/cobra"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running instance's readiness endpoint",
	Long: `Request /ready on a running Brigade instance and exit non-zero when it
is not ready. Intended for container HEALTHCHECK instructions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if url == "" {
			url = readyURL(cfg.Server.HTTPAddr)
		}

		result := health.NewHTTPChecker(url).WithStatusRange(200, 299).WithTimeout(timeout).Check(cmd.Context())
		if !result.Healthy {
			return fmt.Errorf("%s: %s", url, result.Message)
		}
		fmt.Printf("✓ %s (%s)\n", result.Message, result.Duration.Round(time.Millisecond))
		return nil
	},
}

// readyURL turns a listen address like ":8080" into a local /ready URL
func readyURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/ready"
}

func init() {
	healthcheckCmd.Flags().String("url", "", "Readiness URL (default derived from server.http_addr)")
	healthcheckCmd.Flags().Duration("timeout", 3*time.Second, "Request timeout")
}
