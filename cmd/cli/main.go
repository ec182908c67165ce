package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
	token   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loanbook-cli",
		Short: "Loanbook CLI tool",
		Long:  `A command line interface for interacting with the loanbook API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the loanbook API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token for maintenance endpoints")

	rootCmd.AddCommand(reportCmd(), surplusCmd(), ordersCmd(), consistencyCmd(), rebuildCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func reportCmd() *cobra.Command {
	var groupID, from, to string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the aggregate report",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := "?group_id=" + groupID
			if from != "" {
				query += "&from=" + from
			}
			if to != "" {
				query += "&to=" + to
			}
			return getJSON("/api/v1/reports/summary" + query)
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Group ID (empty for company-wide)")
	cmd.Flags().StringVar(&from, "from", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (YYYY-MM-DD)")

	return cmd
}

func surplusCmd() *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "surplus",
		Short: "Show a group's surplus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/reports/surplus?group_id=" + groupID)
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Group ID")
	cmd.MarkFlagRequired("group")

	return cmd
}

func ordersCmd() *cobra.Command {
	var groupID, state string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := "?group_id=" + groupID
			if state != "" {
				query += "&state=" + state
			}
			return getJSON("/api/v1/orders" + query)
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Group ID filter")
	cmd.Flags().StringVar(&state, "state", "", "State filter")

	return cmd
}

func consistencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Check snapshot consistency against the logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/admin/consistency")
		},
	}
}

func rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild snapshots from the logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/admin/rebuild", nil)
		},
	}
}

func getJSON(path string) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return err
	}

	return doRequest(req)
}

func postJSON(path string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return doRequest(req)
}

func doRequest(req *http.Request) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		fmt.Println(string(body))
		return nil
	}

	printJSON(parsed)
	return nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
