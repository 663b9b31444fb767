package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbaille/tagvault/internal/api"
	"github.com/pbaille/tagvault/internal/domain"
	"github.com/pbaille/tagvault/internal/fetcher"
)

var serverURL string

var httpClient = &http.Client{Timeout: 30 * time.Second}

func addServerFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "tagvault server URL")
}

// call sends a JSON request to the server and decodes the JSON reply into out.
func call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error (status %d)", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func ingestCmd() *cobra.Command {
	var origin, rawURL string

	cmd := &cobra.Command{
		Use:   "ingest [content...] [--url url]",
		Short: "Send content to a running server",
		Args: func(cmd *cobra.Command, args []string) error {
			if rawURL != "" && len(args) > 0 {
				return fmt.Errorf("--url cannot be combined with inline content")
			}
			if rawURL == "" && len(args) == 0 {
				return fmt.Errorf("requires content or --url")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			req := api.AddEntryRequest{Origin: origin}
			switch {
			case rawURL != "":
				if !fetcher.IsURL(rawURL) {
					return fmt.Errorf("--url %q is not a url", rawURL)
				}
				req.URL = rawURL
			case fetcher.IsURL(content):
				req.URL = content
			default:
				raw, err := json.Marshal(content)
				if err != nil {
					return err
				}
				req.Payload = raw
			}

	var resp api.AddEntryResponse
			if err := call(http.MethodPost, "/entries", req, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added entry: %s\n", resp.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Tags: %s\n", strings.Join(resp.Tags, ", "))
			fmt.Fprintf(cmd.OutOrStdout(), "Expires: %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "", "source label (defaults to the URL for url ingestion)")
	cmd.Flags().StringVar(&rawURL, "url", "", "fetch this page and ingest its text")
	addServerFlag(cmd)
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Entries []domain.Entry `json:"entries"`
			}
			if err := call(http.MethodGet, "/entries", nil, &resp); err != nil {
				return err
			}
			if len(resp.Entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No live entries.")
				return nil
			}
			for _, e := range resp.Entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s  %s\n",
					shortID(e.ID), strings.Join(e.Tags, ","), truncate(fmt.Sprint(e.Payload), 50))
			}
			return nil
		},
	}
	addServerFlag(cmd)
	return cmd
}

func getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var e domain.Entry
			if err := call(http.MethodGet, "/entries/"+args[0], nil, &e); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", e.ID)
			fmt.Fprintf(out, "Origin:   %s\n", e.Origin)
			fmt.Fprintf(out, "Tags:     %s\n", strings.Join(e.Tags, ", "))
			fmt.Fprintf(out, "Inserted: %s\n", e.InsertedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Expires:  %s\n", e.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Payload:\n%v\n", e.Payload)
			return nil
		},
	}
	addServerFlag(cmd)
	return cmd
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Purge an entry now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := call(http.MethodDelete, "/entries/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	addServerFlag(cmd)
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a sweep pass on the server now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Purged []string `json:"purged"`
			}
			if err := call(http.MethodPost, "/sweep", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries\n", len(resp.Purged))
			for _, id := range resp.Purged {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", id)
			}
			return nil
		},
	}
	addServerFlag(cmd)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
