package http

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CountsCollector exports document and passage totals to prometheus. Counts
// are read from the index on every scrape.
type CountsCollector struct {
	docs    Documents
	timeout time.Duration
	logger  *zap.Logger

	documents *prometheus.Desc
	failed    *prometheus.Desc
	chunks    *prometheus.Desc
	indexed   *prometheus.Desc
	up        *prometheus.Desc
}

// NewCountsCollector creates a collector over docs.
func NewCountsCollector(docs Documents, logger *zap.Logger) *CountsCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountsCollector{
		docs:    docs,
		timeout: 5 * time.Second,
		logger:  logger,
		documents: prometheus.NewDesc("playbook_documents",
			"Number of ready playbook documents in the index.", nil, nil),
		failed: prometheus.NewDesc("playbook_failed_documents",
			"Number of documents whose ingestion failed and that have not been deleted.", nil, nil),
		chunks: prometheus.NewDesc("playbook_chunks",
			"Number of passages stored in the vector backend.", nil, nil),
		indexed: prometheus.NewDesc("playbook_indexed_chunks",
			"Number of passages recorded for ready documents.", nil, nil),
		up: prometheus.NewDesc("playbook_index_up",
			"1 if the index answered the last scrape, 0 otherwise.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CountsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.documents
	ch <- c.failed
	ch <- c.chunks
	ch <- c.indexed
	ch <- c.up
}

// Collect implements prometheus.Collector. When the index is unreachable
// only playbook_index_up is reported.
func (c *CountsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.docs.Statistics(ctx)
	if err != nil {
		c.logger.Warn("collecting index counts", zap.Error(err))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.documents, prometheus.GaugeValue, float64(stats.TotalDocuments))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.GaugeValue, float64(stats.FailedDocuments))
	ch <- prometheus.MustNewConstMetric(c.chunks, prometheus.GaugeValue, float64(stats.TotalChunks))
	ch <- prometheus.MustNewConstMetric(c.indexed, prometheus.GaugeValue, float64(stats.IndexedChunks))
}

var _ prometheus.Collector = (*CountsCollector)(nil)
