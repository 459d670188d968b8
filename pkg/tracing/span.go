// Package tracing times the phases of a build as a tree of spans carried in
// the context and logs the finished tree through slog.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed phase.
type Span struct {
	Name     string
	BuildID  string
	Start    time.Time
	Duration time.Duration
	Err      error
	Attrs    map[string]any

	mu       sync.Mutex
	children []*Span
}

// StartSpan opens a span under the one already in ctx, or a root span when
// there is none.
func StartSpan(ctx context.Context, name, buildID string) (context.Context, *Span) {
	span := &Span{
		Name:    name,
		BuildID: buildID,
		Start:   time.Now(),
		Attrs:   make(map[string]any),
	}
	if parent := FromContext(ctx); parent != nil {
		span.BuildID = parent.BuildID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// End stops the clock. err, if any, is kept for the log line.
func (s *Span) End(err error) {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.Err = err
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// Log writes one line per span, depth first.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"build_id", s.BuildID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.children...)
	failed := s.Err
	s.mu.Unlock()

	if failed != nil {
		logger.Warn("span", append(attrs, "error", failed)...)
	} else {
		logger.Info("span", attrs...)
	}
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
