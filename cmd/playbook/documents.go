package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/extract"
	httpapi "github.com/tom2tomtomtom/Playbook/internal/http"
	"github.com/tom2tomtomtom/Playbook/internal/index"
)

func (c *cli) ingestCmd() *cobra.Command {
	var units bool
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Upload a brand guideline document",
		Long: `Upload a PDF, PPTX or DOCX file for extraction and indexing.

With --units the file is a JSON body of pre-extracted text instead
(see POST /api/v1/documents/units).

Examples:
  # Upload a deck
  playbook ingest brand-guidelines.pptx

  # Index text extracted elsewhere
  playbook ingest --units extracted.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp httpapi.UploadResponse
				err  error
			)
			if units {
				err = c.ingestUnits(args[0], &resp)
			} else {
				err = c.upload(args[0], &resp)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", resp.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "ID:     %s\n", resp.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "File:   %s\n", resp.Filename)
			fmt.Fprintf(cmd.OutOrStdout(), "Chunks: %d\n", resp.ChunkCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&units, "units", false, "treat the file as a JSON units request")
	return cmd
}

// upload streams path as multipart field "file".
func (c *cli) upload(path string, out *httpapi.UploadResponse) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequest(http.MethodPost, c.url("/api/v1/documents"), pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

func (c *cli) ingestUnits(path string, out *httpapi.UploadResponse) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	var req httpapi.UnitsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if req.Filename == "" {
		req.Filename = filepath.Base(path)
	}
	return c.postJSON("/api/v1/documents/units", req, out)
}

func (c *cli) listCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			q.Set("page", fmt.Sprint(page))
			q.Set("page_size", fmt.Sprint(pageSize))

			var list index.DocumentList
			if err := c.getJSON("/api/v1/documents?"+q.Encode(), &list); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILENAME\tTYPE\tSIZE\tCHUNKS\tSTATUS\tCREATED")
			for _, d := range list.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					d.ID, d.Filename, d.FileType, extract.FormatFileSize(d.FileSize),
					d.ChunkCount, d.Status, d.CreatedAt.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d documents)\n", list.Page, list.TotalPages, list.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "documents per page")
	return cmd
}

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show a document record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec index.DocumentRecord
			if err := c.getJSON("/api/v1/documents/"+url.PathEscape(args[0]), &rec); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", rec.ID)
			fmt.Fprintf(out, "Filename:    %s\n", rec.Filename)
			fmt.Fprintf(out, "Type:        %s\n", rec.FileType)
			fmt.Fprintf(out, "Size:        %s\n", extract.FormatFileSize(rec.FileSize))
			fmt.Fprintf(out, "Uploaded by: %s\n", rec.UploadedBy)
			fmt.Fprintf(out, "Created:     %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Chunks:      %d\n", rec.ChunkCount)
			fmt.Fprintf(out, "Status:      %s\n", rec.Status)
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its passages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, c.url("/api/v1/documents/"+url.PathEscape(args[0])), nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			var resp httpapi.DeleteResponse
			if err := c.do(req, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func (c *cli) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Summarize a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s answer.Summary
			if err := c.getJSON("/api/v1/documents/"+url.PathEscape(args[0])+"/summary", &s); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, s.Summary)
			if len(s.KeySections) > 0 {
				fmt.Fprintf(out, "\nSections: %v\n", s.KeySections)
			}
			fmt.Fprintf(out, "Tokens used: %d\n", s.TokensUsed)
			return nil
		},
	}
}
