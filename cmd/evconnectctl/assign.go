package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign <service-id>",
	Short: "Start dispatch for a service request on a running API",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssign,
}

var (
	apiURLFlag  string
	tokenFlag   string
	timeoutFlag time.Duration
)

func init() {
	assignCmd.Flags().StringVar(&apiURLFlag, "api", envOr("EVC_API_URL", "http://localhost:8080"), "API base URL")
	assignCmd.Flags().StringVar(&tokenFlag, "token", os.Getenv("EVC_TOKEN"), "operator ID token")
	assignCmd.Flags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	if tokenFlag == "" {
		return fmt.Errorf("an operator token is required (--token or EVC_TOKEN)")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	body, status, err := postAssign(ctx, http.DefaultClient, apiURLFlag, tokenFlag, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(body))
	if status >= 300 {
		return fmt.Errorf("assign failed: HTTP %d", status)
	}
	return nil
}

func postAssign(ctx context.Context, client *http.Client, base, token, serviceID string) (string, int, error) {
	endpoint, err := url.JoinPath(base, "api", "services", serviceID, "assign")
	if err != nil {
		return "", 0, fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("post assign: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return string(raw), resp.StatusCode, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
