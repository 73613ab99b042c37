package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/metrics"
	"github.com/macropower/cablecat/pkg/version"
)

const defaultUnsetMarker = "UNSET"

// ClassifierSource provides the classifier for the current rulebook revision.
type ClassifierSource interface {
	Classifier() *classify.Classifier
}

// Server implements the MCP server for cablecat.
type Server struct {
	source      ClassifierSource
	server      *mcp.Server
	recorder    *metrics.Recorder
	tracer      trace.Tracer
	address     string
	unsetMarker string
	collation   string
}

// ServerOpt configures a [Server].
type ServerOpt func(s *Server)

// WithAddress serves streamable HTTP on addr instead of stdio.
func WithAddress(addr string) ServerOpt {
	return func(s *Server) {
		s.address = addr
	}
}

// WithRecorder records tool calls in r and serves it on /metrics when
// serving HTTP.
func WithRecorder(r *metrics.Recorder) ServerOpt {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithTracer sets the tracer used for tool call spans.
func WithTracer(t trace.Tracer) ServerOpt {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithUnsetMarker sets the string reported for unset attributes.
func WithUnsetMarker(marker string) ServerOpt {
	return func(s *Server) {
		s.unsetMarker = marker
	}
}

// WithCollation sets the language tag used to sort catalog values.
func WithCollation(tag string) ServerOpt {
	return func(s *Server) {
		s.collation = tag
	}
}

// NewServer creates a new MCP server instance.
func NewServer(source ClassifierSource, opts ...ServerOpt) (*Server, error) {
	if source == nil || source.Classifier() == nil {
		return nil, errors.New("classifier source is required")
	}

	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		source:      source,
		server:      mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		tracer:      noop.NewTracerProvider().Tracer(name),
		unsetMarker: defaultUnsetMarker,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "classify_record",
		Description: "Classify one asset record. Returns the label of every pass in pass order.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"record": newRecordSchema(),
			},
			Required: []string{"record"},
		},
	}, WithTracing(s.tracer, s.handleClassifyRecord))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "explain_record",
		Description: "Classify one asset record and list, for every pass, each matching rule in evaluation order and the rule that won.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"record": newRecordSchema(),
			},
			Required: []string{"record"},
		},
	}, WithTracing(s.tracer, s.handleExplainRecord))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: "List the rulebook passes and their rules in evaluation order. Optionally filter to one pass attribute.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"attribute": {
					Type:        "string",
					Description: "The pass attribute to list, e.g. Group. Empty lists every pass.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleListRules))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "catalog",
		Description: "Classify the given records and list the distinct values of the requested fields with counts.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"records": {
					Type:  "array",
					Items: newRecordSchema(),
				},
				"fields": {
					Type:        "array",
					Description: "Schema fields or pass attributes to catalog. Defaults to the rulebook's catalog fields.",
					Items:       &jsonschema.Schema{Type: "string"},
				},
			},
			Required: []string{"records"},
		},
	}, WithTracing(s.tracer, s.handleCatalog))
}

func (s *Server) classifier() *classify.Classifier {
	return s.source.Classifier()
}

func (s *Server) observe(c *classify.Classifier, results []classify.Result, start time.Time) {
	if s.recorder != nil {
		s.recorder.Observe(c, results, time.Since(start))
	}
}

func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve starts the MCP server and blocks until ctx is done or the
// transport fails.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve Stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

// Handler returns the HTTP handler serving MCP on / and, with a
// recorder, metrics on /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil))

	if s.recorder != nil {
		mux.Handle("/metrics", s.recorder.Handler())
	}

	return mux
}

func (s *Server) serveHTTP(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),

		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("MCP server failed: %w", err)
		}

		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		return nil
	}
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)
	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
