package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultHealthAddr = "127.0.0.1:8080"
	healthTimeout     = 2 * time.Second
)

func newHealthcheckCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server's health endpoint",
		Long: `Requests /api/v1/health from a running server and exits non-zero unless it
answers 200. Intended for container health checks; the address defaults to
IGMEDIA_LISTEN_ADDR with a bind-all host replaced by loopback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = os.Getenv("IGMEDIA_LISTEN_ADDR")
			}
			return probe(cmd.Context(), normalizeAddr(addr))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (host:port)")

	return cmd
}

func probe(parent context.Context, addr string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// normalizeAddr points the probe at loopback when the server binds every
// interface, since the probe runs on the same host.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultHealthAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultHealthAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
