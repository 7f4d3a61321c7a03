// Package main implements the playbook CLI for manual operations against the
// playbookd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/tom2tomtomtom/Playbook/internal/http"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries flags shared by every command.
type cli struct {
	serverURL string
	timeout   time.Duration
	user      string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "playbook",
		Short: "CLI for playbookd HTTP server operations",
		Long: `playbook is a command-line interface for the playbookd HTTP server.
It uploads brand guideline documents, asks questions against them and
inspects the index.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&c.serverURL, "server", "http://localhost:8000", "playbookd server URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 2*time.Minute, "request timeout")
	root.PersistentFlags().StringVar(&c.user, "user", "", "uploader recorded with ingested documents")

	root.AddCommand(
		c.ingestCmd(),
		c.listCmd(),
		c.infoCmd(),
		c.deleteCmd(),
		c.summaryCmd(),
		c.askCmd(),
		c.statsCmd(),
		c.healthCmd(),
	)
	return root
}

func (c *cli) url(path string) string {
	return strings.TrimRight(c.serverURL, "/") + path
}

func (c *cli) client() *http.Client {
	return &http.Client{Timeout: c.timeout}
}

// do sends req and decodes a JSON response into out. Non-2xx statuses
// become errors carrying the server's detail message.
func (c *cli) do(req *http.Request, out any) error {
	if c.user != "" {
		req.Header.Set(httpapi.HeaderUploadedBy, c.user)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, err)
	}
	var er httpapi.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Detail != "" {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, er.Detail)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *cli) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *cli) postJSON(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}
