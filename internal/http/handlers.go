package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/extract"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/llm"
	"github.com/tom2tomtomtom/Playbook/internal/logging"
	"github.com/tom2tomtomtom/Playbook/internal/metadata"
)

// HeaderUploadedBy names the uploader of a document.
const HeaderUploadedBy = "X-Uploaded-By"

const defaultPageSize = 10

// handleUpload extracts, chunks and indexes a multipart "file".
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("multipart field \"file\" is required")
	}

	filename := extract.SanitizeFilename(fh.Filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !slices.Contains(s.config.AllowedExtensions, ext) {
		return &extract.UnsupportedFormatError{Ext: ext}
	}
	if fh.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file is %s, limit is %s", extract.FormatFileSize(fh.Size), extract.FormatFileSize(s.config.MaxUploadBytes)))
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	documentID := index.NewDocumentID()
	ctx := logging.WithDocumentID(c.Request().Context(), documentID)

	doc, err := extract.Read(ctx, filename, f, fh.Size)
	if err != nil {
		return err
	}

	return s.ingest(c, documentID, extract.Chunks(doc, s.splitter), index.DocumentInfo{
		Filename:   filename,
		FileType:   string(doc.Format),
		FileSize:   fh.Size,
		UploadedBy: uploadedBy(c),
	})
}

// handleIngestUnits indexes text extracted by the caller.
func (s *Server) handleIngestUnits(c echo.Context) error {
	var req UnitsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return badRequest("filename is required")
	}

	doc := &extract.Document{Filename: extract.SanitizeFilename(req.Filename)}
	var size int64
	for i, u := range req.Units {
		kind := chunker.Type(u.Kind)
		if kind == "" {
			kind = chunker.TypeText
		}
		if !kind.Valid() {
			return badRequest(fmt.Sprintf("units[%d]: unknown kind %q", i, u.Kind))
		}
		doc.Units = append(doc.Units, extract.Unit{Text: u.Text, Number: u.Number, Kind: kind, Style: u.Style})
		size += int64(len(u.Text))
	}
	for _, t := range req.Tables {
		doc.Tables = append(doc.Tables, extract.Table{Number: t.Number, Rows: t.Rows})
		for _, row := range t.Rows {
			for _, cell := range row {
				size += int64(len(cell))
			}
		}
	}

	fileType := req.FileType
	if fileType == "" {
		fileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Filename)), ".")
	}

	return s.ingest(c, index.NewDocumentID(), extract.Chunks(doc, s.splitter), index.DocumentInfo{
		Filename:   doc.Filename,
		FileType:   fileType,
		FileSize:   size,
		UploadedBy: uploadedBy(c),
	})
}

func (s *Server) ingest(c echo.Context, documentID string, chunks []chunker.Chunk, info index.DocumentInfo) error {
	ctx := logging.WithDocumentID(c.Request().Context(), documentID)

	rec, err := s.docs.AddDocument(ctx, documentID, chunks, info)
	if err != nil {
		return err
	}

	s.logger.Info("document ingested", append(logging.ContextFields(ctx),
		zap.String("filename", rec.Filename),
		zap.String("size", extract.FormatFileSize(rec.FileSize)),
		zap.Int("chunks", rec.ChunkCount),
	)...)

	return c.JSON(http.StatusCreated, UploadResponse{
		ID:         rec.ID,
		Filename:   rec.Filename,
		Status:     "success",
		Message:    fmt.Sprintf("Successfully processed %d content chunks", rec.ChunkCount),
		ChunkCount: rec.ChunkCount,
	})
}

func uploadedBy(c echo.Context) string {
	if v := strings.TrimSpace(c.Request().Header.Get(HeaderUploadedBy)); v != "" {
		return v
	}
	return "anonymous"
}

func (s *Server) handleListDocuments(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil {
		return err
	}

	list, err := s.docs.ListDocuments(c.Request().Context(), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// document loads the record named by the :id path parameter.
func (s *Server) document(c echo.Context) (*index.DocumentRecord, error) {
	id := c.Param("id")
	ctx := logging.WithDocumentID(c.Request().Context(), id)
	c.SetRequest(c.Request().WithContext(ctx))

	rec, ok, err := s.docs.GetDocumentInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, metadata.ErrNotFound)
	}
	return rec, nil
}

func (s *Server) handleGetDocument(c echo.Context) error {
	rec, err := s.document(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// handleDeleteDocument is idempotent: unknown ids succeed.
func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	ctx := logging.WithDocumentID(c.Request().Context(), id)

	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", logging.ContextFields(ctx)...)
	return c.JSON(http.StatusOK, DeleteResponse{Message: "Playbook deleted successfully"})
}

func (s *Server) handleSummary(c echo.Context) error {
	rec, err := s.document(c)
	if err != nil {
		return err
	}
	summary, err := s.answers.Summarize(c.Request().Context(), rec.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest("question is required")
	}
	for i, m := range req.ConversationHistory {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			return badRequest(fmt.Sprintf("conversation_history[%d]: role must be user or assistant", i))
		}
	}

	ctx := c.Request().Context()
	if req.DocumentID != "" {
		ctx = logging.WithDocumentID(ctx, req.DocumentID)
	}

	env, err := s.answers.Answer(ctx, answer.Question{
		Text:       req.Question,
		DocumentID: req.DocumentID,
		History:    req.ConversationHistory,
		APIKey:     req.APIKey,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) handleStatistics(c echo.Context) error {
	stats, err := s.docs.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatisticsResponse{
		VectorStore: stats,
		TokenUsage:  s.answers.Usage().Snapshot(),
		APIVersion:  s.config.Version,
	})
}

// handleHealth reports 503 with the same body when the index is unreachable.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	resp := HealthResponse{
		Status:            "healthy",
		Version:           s.config.Version,
		VectorStoreStatus: "connected",
	}

	if err := s.docs.Health(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.VectorStoreStatus = "error: " + err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	stats, err := s.docs.Statistics(ctx)
	if err != nil {
		resp.Status = "degraded"
		resp.VectorStoreStatus = "error: " + err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.TotalDocuments = stats.TotalDocuments
	resp.TotalChunks = stats.TotalChunks
	return c.JSON(http.StatusOK, resp)
}
