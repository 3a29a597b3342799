package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// allowedPrefixes lists the span-attribute key prefixes that survive export.
// Anything outside this list is dropped before it leaves the process, which
// keeps job/task identifiers and error classification flowing to the
// collector while accidental high-cardinality or sensitive attributes don't.
var allowedPrefixes = []string{
	"indexerd.", "error.", "job.", "task.", "codebase.",
	"git.", "parse.", "graph.", "storage.", "container.",
}

// blockedPrefixes always wins over allowedPrefixes, for namespaces that look
// safe but can carry operator-identifying data.
var blockedPrefixes = []string{"user."}

// blockedKeys are exact-match keys dropped regardless of prefix.
var blockedKeys = map[string]bool{
	"email":         true,
	"request.body":  true,
	"response.body": true,
}

// attributeFilter is an sdktrace.SpanProcessor that strips span attributes
// outside the allowed namespace before spans reach the next processor in
// the chain (typically a batcher feeding an OTLP exporter).
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
}

// NewAttributeFilter wraps delegate so OnEnd sees only allow-listed
// attributes. logger may be nil to disable the drop-warning log line.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	return f.delegate.Shutdown(ctx)
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	return f.delegate.ForceFlush(ctx)
}

func (f *attributeFilter) isAllowed(key string) bool {
	k := attribute.Key(key)
	name := string(k)

	if blockedKeys[name] {
		return false
	}

	for _, prefix := range blockedPrefixes {
		if hasPrefix(name, prefix) {
			f.warn(name)

			return false
		}
	}

	if name == "error" {
		return true
	}

	for _, prefix := range allowedPrefixes {
		if hasPrefix(name, prefix) {
			return true
		}
	}

	f.warn(name)

	return false
}

func (f *attributeFilter) warn(key string) {
	if f.logger == nil {
		return
	}

	f.logger.Debug("dropping span attribute outside allow-list", "attribute.key", key)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// filteredSpan wraps a ReadOnlySpan, filtering its Attributes() through the
// owning attributeFilter before export.
type filteredSpan struct {
	sdktrace.ReadOnlySpan
	filter *attributeFilter
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if s.filter.isAllowed(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}
