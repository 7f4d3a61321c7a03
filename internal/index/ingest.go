package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/metadata"
	"github.com/tom2tomtomtom/Playbook/internal/vectorstore"
)

// passageNamespace scopes passage UUIDs.
var passageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/tom2tomtomtom/Playbook/passage"))

// DocumentInfo is the caller-supplied description of an uploaded file.
type DocumentInfo struct {
	Filename   string
	FileType   string
	FileSize   int64
	UploadedBy string
}

// PassageID derives the storage id of the index-th chunk of a document.
// Identical content in different documents or positions never collides.
func PassageID(documentID string, index int, content string) string {
	sum := sha256.Sum256([]byte(content))
	name := documentID + "|" + strconv.Itoa(index) + "|" + hex.EncodeToString(sum[:])
	return uuid.NewSHA1(passageNamespace, []byte(name)).String()
}

// NewDocumentID returns a fresh random document id.
func NewDocumentID() string {
	return uuid.NewString()
}

// AddDocument embeds and stores chunks under documentID, then marks the
// document ready. Any failure marks the record failed, removes passages
// already written, and returns an error wrapping ErrIngestion.
func (x *Index) AddDocument(ctx context.Context, documentID string, chunks []chunker.Chunk, info DocumentInfo) (*DocumentRecord, error) {
	ctx, span := tracer.Start(ctx, "Index.AddDocument")
	defer span.End()

	if documentID == "" {
		documentID = NewDocumentID()
	}
	span.SetAttributes(
		attribute.String("document.id", documentID),
		attribute.Int("chunk_count", len(chunks)),
	)

	texts := make([]string, 0, len(chunks))
	kept := make([]chunker.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		kept = append(kept, c)
		texts = append(texts, c.Content)
	}
	if len(kept) == 0 {
		err := fmt.Errorf("%w: %w: document %s", ErrIngestion, ErrEmptyDocument, documentID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty document")
		return nil, err
	}

	if info.UploadedBy == "" {
		info.UploadedBy = "anonymous"
	}
	record := DocumentRecord{
		ID:         documentID,
		Filename:   info.Filename,
		FileType:   info.FileType,
		FileSize:   info.FileSize,
		UploadedBy: info.UploadedBy,
		CreatedAt:  time.Now().UTC(),
		Status:     metadata.StatusIngesting,
	}
	if err := x.meta.Put(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: recording document %s: %w", ErrIngestion, documentID, err)
	}

	embeddings, err := x.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, x.fail(ctx, span, documentID, fmt.Errorf("embedding passages: %w", err))
	}
	if len(embeddings) != len(kept) {
		return nil, x.fail(ctx, span, documentID,
			fmt.Errorf("embedder returned %d vectors for %d passages", len(embeddings), len(kept)))
	}

	records := make([]vectorstore.Record, len(kept))
	for i, c := range kept {
		records[i] = vectorstore.Record{
			ID:        PassageID(documentID, i, c.Content),
			Content:   c.Content,
			Embedding: embeddings[i],
			Metadata:  passageMetadata(documentID, info.Filename, i, c),
		}
	}

	for start := 0; start < len(records); start += x.config.UpsertBatchSize {
		end := min(start+x.config.UpsertBatchSize, len(records))
		if err := x.store.Upsert(ctx, records[start:end]); err != nil {
			return nil, x.fail(ctx, span, documentID,
				fmt.Errorf("storing batch %d-%d of %d: %w", start, end, len(records), err))
		}
	}

	if err := x.meta.SetStatus(ctx, documentID, metadata.StatusReady, len(records)); err != nil {
		return nil, x.fail(ctx, span, documentID, fmt.Errorf("marking ready: %w", err))
	}
	record.Status = metadata.StatusReady
	record.ChunkCount = len(records)

	x.logger.Info("document indexed",
		zap.String("document_id", documentID),
		zap.String("filename", info.Filename),
		zap.Int("chunks", len(records)),
	)
	span.SetStatus(codes.Ok, "success")
	return &record, nil
}

// fail marks the document failed and rolls back written passages. Cleanup
// runs even when ctx is already canceled.
func (x *Index) fail(ctx context.Context, span trace.Span, documentID string, cause error) error {
	cleanup := context.WithoutCancel(ctx)

	if err := x.meta.SetStatus(cleanup, documentID, metadata.StatusFailed, 0); err != nil {
		x.logger.Error("failed to mark document failed",
			zap.String("document_id", documentID), zap.Error(err))
	}
	if err := x.store.Delete(cleanup, map[string]string{KeyDocumentID: documentID}); err != nil {
		x.logger.Error("failed to roll back passages",
			zap.String("document_id", documentID), zap.Error(err))
	}

	err := fmt.Errorf("%w: document %s: %w", ErrIngestion, documentID, cause)
	span.RecordError(err)
	span.SetStatus(codes.Error, cause.Error())
	x.logger.Warn("ingestion failed", zap.String("document_id", documentID), zap.Error(cause))
	return err
}

func passageMetadata(documentID, filename string, index int, c chunker.Chunk) map[string]string {
	md := make(map[string]string, len(c.Metadata)+5)
	for k, v := range c.Metadata {
		md[k] = fmt.Sprint(v)
	}
	unit := c.SourceUnit
	if unit < 1 {
		unit = 1
	}
	md[KeyDocumentID] = documentID
	md[KeySourceUnit] = strconv.Itoa(unit)
	md[KeyChunkType] = string(c.Type)
	md[KeyChunkIndex] = strconv.Itoa(index)
	if filename != "" {
		md[KeyFilename] = filename
	}
	return md
}

// DeleteDocument removes a document's passages and its record. Deleting an
// unknown id succeeds.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Index.DeleteDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	if documentID == "" {
		return fmt.Errorf("document id is required")
	}
	if err := x.store.Delete(ctx, map[string]string{KeyDocumentID: documentID}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting passages of %s: %w", documentID, err)
	}
	if err := x.meta.Delete(ctx, documentID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting record of %s: %w", documentID, err)
	}

	x.logger.Info("document deleted", zap.String("document_id", documentID))
	span.SetStatus(codes.Ok, "success")
	return nil
}
