package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestIDKey  struct{}
	documentIDKey struct{}
)

// idPattern bounds request and document ids to 128 URL-safe characters.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id can be stored with WithRequestID or
// WithDocumentID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// WithRequestID returns ctx carrying requestID. It panics on an id that
// fails ValidID; callers check ids from untrusted headers first.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !ValidID(requestID) {
		panic(fmt.Sprintf("logging: invalid request id %q", requestID))
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithDocumentID returns ctx carrying documentID. Invalid ids come
// straight from request paths and are dropped.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	if !ValidID(documentID) {
		return ctx
	}
	return context.WithValue(ctx, documentIDKey{}, documentID)
}

// DocumentIDFromContext returns the document id or "".
func DocumentIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(documentIDKey{}).(string)
	return id
}

// ContextFields returns the correlation fields found in ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := DocumentIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("document.id", id))
	}
	return fields
}
