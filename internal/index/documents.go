package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/tom2tomtomtom/Playbook/internal/metadata"
)

// DocumentList is one page of document records.
type DocumentList struct {
	Items      []DocumentRecord `json:"playbooks"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// ListDocuments returns page (1-based) of the side-index in creation order.
// Passage vectors are never read.
func (x *Index) ListDocuments(ctx context.Context, page, pageSize int) (*DocumentList, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidPage, page)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page size must be in [1,%d], got %d", ErrInvalidPage, MaxPageSize, pageSize)
	}

	total, err := x.meta.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}

	items := []DocumentRecord{}
	offset := (page - 1) * pageSize
	if offset < total {
		items, err = x.meta.List(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
	}

	return &DocumentList{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// GetDocumentInfo returns the record for documentID. ok is false when the
// document is unknown.
func (x *Index) GetDocumentInfo(ctx context.Context, documentID string) (rec *DocumentRecord, ok bool, err error) {
	rec, err = x.meta.Get(ctx, documentID)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting document %s: %w", documentID, err)
	}
	return rec, true, nil
}
