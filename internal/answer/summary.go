package answer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tom2tomtomtom/Playbook/internal/llm"
	"github.com/tom2tomtomtom/Playbook/internal/retriever"
)

// Summary query and sample size.
const (
	summaryQuery    = "overview mission values visual identity"
	summaryPassages = 10
)

// NoContentSummary is returned when a document has nothing to summarize.
const NoContentSummary = "No content was found in this playbook to summarize."

// Summary is a structured overview of one playbook.
type Summary struct {
	DocumentID  string   `json:"document_id"`
	Summary     string   `json:"summary"`
	KeySections []string `json:"key_sections"`
	TokensUsed  int      `json:"tokens_used"`
}

// Summarize samples passages of a document with a broad query and asks the
// model for a four-part summary. KeySections lists the chunk types of the
// sampled passages in first-seen order.
func (g *Generator) Summarize(ctx context.Context, documentID string) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "Generator.Summarize")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	if documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}

	passages, err := g.searcher.Search(ctx, retriever.Request{
		Query:      summaryQuery,
		DocumentID: documentID,
		TopK:       summaryPassages,
		Threshold:  retriever.Threshold(0),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sections := []string{}
	seen := make(map[string]bool)
	for _, p := range passages {
		t := string(p.Type)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		sections = append(sections, t)
	}

	if len(passages) == 0 {
		span.SetStatus(codes.Ok, "no passages")
		return &Summary{DocumentID: documentID, Summary: NoContentSummary, KeySections: sections}, nil
	}

	resp, err := g.complete(ctx, llm.Request{
		System: summarySystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(summaryUserTemplate, BuildContext(passages)),
		}},
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "success")
	return &Summary{
		DocumentID:  documentID,
		Summary:     resp.Text,
		KeySections: sections,
		TokensUsed:  resp.TotalTokens(),
	}, nil
}
