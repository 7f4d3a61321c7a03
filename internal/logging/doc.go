// Package logging wraps zap for playbookd.
//
// Every entry logged through a Logger carries the correlation fields found
// in its context: trace and span ids from OpenTelemetry, the HTTP request id
// and the playbook document id being worked on.
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	ctx = logging.WithDocumentID(ctx, documentID)
//	logger.Info(ctx, "document ingested", zap.Int("chunks", n))
//
// Output goes to stdout, to an OpenTelemetry log provider through the
// otelzap bridge, or both. Values that look like credentials are masked
// before they reach either sink, and below-error entries are sampled.
package logging
