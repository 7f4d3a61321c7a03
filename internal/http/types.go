package http

import (
	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/llm"
)

// UploadResponse is the response body for document ingestion.
type UploadResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	ChunkCount int    `json:"chunk_count"`
}

// UnitsRequest is the body of POST /api/v1/documents/units: text that was
// extracted elsewhere, ready for chunking.
type UnitsRequest struct {
	Filename string         `json:"filename"`
	FileType string         `json:"file_type"`
	Units    []UnitPayload  `json:"units"`
	Tables   []TablePayload `json:"tables"`
}

// UnitPayload is one page or slide of text.
type UnitPayload struct {
	Text   string `json:"text"`
	Number int    `json:"number"`
	// Kind is a chunk type such as "slide_content"; default "text".
	Kind  string `json:"kind"`
	Style string `json:"style,omitempty"`
}

// TablePayload is a row-major table found on a page or slide.
type TablePayload struct {
	Number int        `json:"number"`
	Rows   [][]string `json:"rows"`
}

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question            string        `json:"question"`
	DocumentID          string        `json:"document_id,omitempty"`
	ConversationHistory []llm.Message `json:"conversation_history,omitempty"`
	APIKey              string        `json:"api_key,omitempty"`
}

// DeleteResponse is the response body for DELETE /api/v1/documents/:id.
type DeleteResponse struct {
	Message string `json:"message"`
}

// StatisticsResponse is the response body for GET /api/v1/statistics.
type StatisticsResponse struct {
	VectorStore *index.Statistics `json:"vector_store"`
	TokenUsage  answer.Usage      `json:"token_usage"`
	APIVersion  string            `json:"api_version"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	VectorStoreStatus string `json:"vector_store_status"`
	TotalDocuments    int    `json:"total_documents"`
	TotalChunks       int    `json:"total_chunks"`
}
