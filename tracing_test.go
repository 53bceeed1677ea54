package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// spanNames records the name of every span started through it
type spanNames struct {
	noop.TracerProvider
	mu    sync.Mutex
	names []string
}

func (s *spanNames) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return namingTracer{rec: s}
}

func (s *spanNames) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

type namingTracer struct {
	noop.Tracer
	rec *spanNames
}

func (t namingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.rec.mu.Lock()
	t.rec.names = append(t.rec.names, name)
	t.rec.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func recordSpans(t *testing.T) *spanNames {
	t.Helper()
	prev := otel.GetTracerProvider()
	rec := &spanNames{}
	otel.SetTracerProvider(rec)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestAuther_IssueStartsSpan(t *testing.T) {
	env := newTestEnv(t)
	rec := recordSpans(t)

	env.signup(t, "Ana", "ana@example.com", "pass1234")
	assert.Contains(t, rec.list(), "auth.issue_session")

	_, err := env.auther.Login(context.Background(), "ana@example.com", "pass1234")
	require.NoError(t, err)

	names := rec.list()
	assert.Contains(t, names, "auth.login")

	issued := 0
	for _, n := range names {
		if n == "auth.issue_session" {
			issued++
		}
	}
	assert.Equal(t, 2, issued)
}
