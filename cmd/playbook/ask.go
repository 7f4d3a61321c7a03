package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	httpapi "github.com/tom2tomtomtom/Playbook/internal/http"
)

func (c *cli) askCmd() *cobra.Command {
	var (
		documentID string
		apiKey     string
		passages   bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the indexed guidelines",
		Long: `Ask a question and print the grounded answer.

Examples:
  # Ask across every document
  playbook ask "What is our primary brand colour?"

  # Restrict to one document and show the supporting passages
  playbook ask --document 3f2a... --passages "Which typeface do headlines use?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is empty")
			}

			var env answer.Envelope
			err := c.postJSON("/api/v1/ask", httpapi.AskRequest{
				Question:   question,
				DocumentID: documentID,
				APIKey:     apiKey,
			}, &env)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, env.Answer)
			fmt.Fprintf(out, "\nConfidence: %.2f  Tokens: %d\n", env.Confidence, env.TokensUsed)
			if passages {
				for i, p := range env.Passages {
					fmt.Fprintf(out, "\n[%d] page %d, %s, score %.3f\n%s\n", i+1, p.SourceUnit, p.Type, p.Score, p.Content)
				}
			}
			if len(env.FollowUps) > 0 {
				fmt.Fprintln(out, "\nFollow-up questions:")
				for _, q := range env.FollowUps {
					fmt.Fprintf(out, "  - %s\n", q)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "restrict retrieval to one document id")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "per-request model API key")
	cmd.Flags().BoolVar(&passages, "passages", false, "print supporting passages")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index and token usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s httpapi.StatisticsResponse
			if err := c.getJSON("/api/v1/statistics", &s); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.VectorStore != nil {
				fmt.Fprintf(out, "Documents:       %d\n", s.VectorStore.TotalDocuments)
				if s.VectorStore.FailedDocuments > 0 {
					fmt.Fprintf(out, "Failed:          %d\n", s.VectorStore.FailedDocuments)
				}
				fmt.Fprintf(out, "Chunks:          %d\n", s.VectorStore.TotalChunks)
				fmt.Fprintf(out, "Embedding model: %s\n", s.VectorStore.EmbeddingModel)
			}
			fmt.Fprintf(out, "Requests:        %d\n", s.TokenUsage.Requests)
			fmt.Fprintf(out, "Tokens:          %d (prompt %d, completion %d)\n",
				s.TokenUsage.TotalTokens, s.TokenUsage.PromptTokens, s.TokenUsage.CompletionTokens)
			fmt.Fprintf(out, "Estimated cost:  $%.4f\n", s.TokenUsage.EstimatedCostUSD)
			fmt.Fprintf(out, "API version:     %s\n", s.APIVersion)
			return nil
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check playbookd server health",
		Long: `Check the health status of the playbookd HTTP server.

Examples:
  # Check health
  playbook health

  # Check health on a different server
  playbook health --server http://localhost:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var h httpapi.HealthResponse
			if err := c.getJSON("/health", &h); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", h.Status)
			fmt.Fprintf(out, "Server URL: %s\n", c.serverURL)
			fmt.Fprintf(out, "Version: %s\n", h.Version)
			fmt.Fprintf(out, "Vector store: %s\n", h.VectorStoreStatus)
			fmt.Fprintf(out, "Documents: %d, chunks: %d\n", h.TotalDocuments, h.TotalChunks)
			return nil
		},
	}
}
