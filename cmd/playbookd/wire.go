package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/config"
	"github.com/tom2tomtomtom/Playbook/internal/embeddings"
	httpapi "github.com/tom2tomtomtom/Playbook/internal/http"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/llm"
	"github.com/tom2tomtomtom/Playbook/internal/metadata"
	"github.com/tom2tomtomtom/Playbook/internal/reranker"
	"github.com/tom2tomtomtom/Playbook/internal/retriever"
	"github.com/tom2tomtomtom/Playbook/internal/vectorstore"
)

// dependencies holds every long-lived component, in construction order.
type dependencies struct {
	embedder  *embeddings.Client
	store     vectorstore.Store
	meta      *metadata.SQLiteStore
	index     *index.Index
	provider  llm.Provider
	generator *answer.Generator
	splitter  *chunker.Splitter
	registry  *prometheus.Registry
}

// initDependencies builds the ingestion and answering pipeline from cfg.
// On error everything built so far is closed.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *dependencies, err error) {
	d := &dependencies{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	d.splitter, err = chunker.NewSplitter(cfg.ChunkerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	provider, err := embeddings.NewProvider(ctx, cfg.EmbeddingProvider())
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	d.embedder = embeddings.NewClient(provider, cfg.EmbeddingClient(), logger.Named("embeddings"))

	d.store, err = vectorstore.NewStore(cfg.VectorStoreBackend(), d.embedder.Dimension(), logger.Named("vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	d.meta, err = metadata.Open(cfg.MetadataStore(), logger.Named("metadata"))
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}

	d.index, err = index.New(d.embedder, d.store, d.meta, cfg.IndexConfig(), logger.Named("index"))
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	opts := []retriever.Option{retriever.WithLogger(logger.Named("retriever"))}
	if cfg.Retrieval.Rerank {
		opts = append(opts, retriever.WithReranker(reranker.NewTermOverlap(reranker.WithOverlapWeight(cfg.Retrieval.OverlapWeight))))
	}
	ret, err := retriever.New(d.index, cfg.RetrieverConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}

	d.provider, err = llm.NewProvider(ctx, cfg.LLMProvider(), logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	d.generator, err = answer.New(ret, d.provider, answer.NewUsageTracker(nil), cfg.AnswerConfig(), logger.Named("answer"))
	if err != nil {
		return nil, fmt.Errorf("answer generator: %w", err)
	}

	d.registry = prometheus.NewRegistry()
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpapi.NewCountsCollector(d.index, logger.Named("metrics")),
	)

	return d, nil
}

// Close releases resources in reverse construction order.
func (d *dependencies) Close() error {
	var errs []error
	if d.provider != nil {
		errs = append(errs, d.provider.Close())
	}
	if d.meta != nil {
		errs = append(errs, d.meta.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if d.embedder != nil {
		errs = append(errs, d.embedder.Close())
	}
	return errors.Join(errs...)
}
