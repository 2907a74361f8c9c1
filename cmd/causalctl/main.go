// Package main implements the causalctl CLI for inspecting a running causalityd daemon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the causalityd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "causalctl",
	Short: "CLI for inspecting causalityd chains",
	Long: `causalctl is a command-line interface for the causalityd HTTP inspection API.
It lists causal chains, exports individual chains with their timeline and
performance report, and shows store statistics.`,
	Version: version,
}

var (
	chainsRootType  string
	chainsSince     string
	chainsUntil     string
	chainsTags      []string
	chainsHasErrors bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9180", "causalityd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(chainsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(statsCmd)

	chainsCmd.Flags().StringVar(&chainsRootType, "root-type", "", "Filter by root event type (user_action, api_call, ...)")
	chainsCmd.Flags().StringVar(&chainsSince, "since", "", "Only chains started at or after this RFC3339 timestamp")
	chainsCmd.Flags().StringVar(&chainsUntil, "until", "", "Only chains started at or before this RFC3339 timestamp")
	chainsCmd.Flags().StringSliceVar(&chainsTags, "tag", nil, "Only chains carrying this tag (repeatable)")
	chainsCmd.Flags().BoolVar(&chainsHasErrors, "has-errors", false, "Only chains containing errors")
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check causalityd server health",
	Long: `Check the health status of the causalityd HTTP server.

Examples:
  # Check health
  causalctl health

  # Check health on a different server
  causalctl health --server http://localhost:9280`,
	RunE: runHealth,
}

// chainsCmd lists chains matching a filter
var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List causal chains",
	Long: `List causal chains held by the daemon, optionally filtered.

Examples:
  # All live chains
  causalctl chains

  # Failed API call chains from the last hour
  causalctl chains --root-type api_call --has-errors --since $(date -u -d '1 hour ago' +%Y-%m-%dT%H:%M:%SZ)

  # Chains tagged checkout
  causalctl chains --tag checkout`,
	RunE: runChains,
}

// exportCmd exports one chain with timeline and performance report
var exportCmd = &cobra.Command{
	Use:   "export <chain-id>",
	Short: "Export a single chain",
	Long: `Export a single chain as JSON: all events plus the reconstructed
timeline and performance report.

Examples:
  causalctl export 7f9c2b3a-... > chain.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// timelineCmd shows the chronological event sequence of one chain
var timelineCmd = &cobra.Command{
	Use:   "timeline <chain-id>",
	Short: "Show a chain's event timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

// statsCmd shows store sizes and lifetime counters
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tracker statistics",
	RunE:  runStats,
}

// HealthResponse matches internal/http/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	body, err := get("/health", 5*time.Second)
	if err != nil {
		return err
	}

	var healthResp HealthResponse
	if err := json.Unmarshal(body, &healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}

// runChains handles the chains command
func runChains(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if chainsRootType != "" {
		params.Set("root_type", chainsRootType)
	}
	if chainsSince != "" {
		params.Set("since", chainsSince)
	}
	if chainsUntil != "" {
		params.Set("until", chainsUntil)
	}
	if len(chainsTags) > 0 {
		params.Set("tags", strings.Join(chainsTags, ","))
	}
	if cmd.Flags().Changed("has-errors") {
		params.Set("has_errors", fmt.Sprintf("%t", chainsHasErrors))
	}

	path := "/api/v1/chains"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	return printJSON(path, 10*time.Second)
}

// runExport handles the export command
func runExport(cmd *cobra.Command, args []string) error {
	return printJSON(fmt.Sprintf("/api/v1/chains/%s/export", url.PathEscape(args[0])), 10*time.Second)
}

// runTimeline handles the timeline command
func runTimeline(cmd *cobra.Command, args []string) error {
	return printJSON(fmt.Sprintf("/api/v1/chains/%s/timeline", url.PathEscape(args[0])), 10*time.Second)
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	return printJSON("/api/v1/stats", 5*time.Second)
}

// get performs a GET against the server and returns the response body.
func get(path string, timeout time.Duration) ([]byte, error) {
	reqURL := serverURL + path

	client := &http.Client{
		Timeout: timeout,
	}

	resp, err := client.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// printJSON fetches a path and pretty-prints the JSON response to stdout.
func printJSON(path string, timeout time.Duration) error {
	body, err := get(path, timeout)
	if err != nil {
		return err
	}

	var buf map[string]any
	if err := json.Unmarshal(body, &buf); err != nil {
		// Some endpoints return arrays; fall back to raw output.
		fmt.Println(strings.TrimSpace(string(body)))
		return nil
	}

	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}

	fmt.Println(string(pretty))
	return nil
}
