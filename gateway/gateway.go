// Package gateway wires federation/schema, federation/operation,
// federation/opgraph, federation/planner and federation/executor behind a
// single GraphQL HTTP endpoint, the way the teacher's gateway/gateway.go
// wires graph.SuperGraphV2, planner.PlannerV2 and executor.ExecutorV2.
// Composition already happened before a supergraph SDL file reaches this
// package (federation/schema.Builder.Build expects one pre-composed
// document), so New loads that single file rather than merging a
// list of per-subgraph schemas the way the teacher's NewGateway does.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/graphfed/supergraph-planner/federation/executor"
	"github.com/graphfed/supergraph-planner/federation/opgraph"
	"github.com/graphfed/supergraph-planner/federation/operation"
	"github.com/graphfed/supergraph-planner/federation/planner"
	"github.com/graphfed/supergraph-planner/federation/schema"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

var tracer = otel.Tracer("github.com/graphfed/supergraph-planner/gateway")

// Gateway serves GraphQL requests against a composed supergraph. Its schema
// field is swapped atomically by SetSchema (the registry's job, on a fresh
// registration), so in-flight requests always see a schema built in a
// single Builder.Build transaction.
type Gateway struct {
	setting Setting
	logger  *slog.Logger

	mu     sync.RWMutex
	schema *schema.Schema

	httpClient *http.Client

	pqMu sync.RWMutex
	pq   map[string]string // sha256 hex -> query text, only populated when PersistedQueries.Enable
}

var _ http.Handler = (*Gateway)(nil)

// New builds a Gateway from setting, reading and composing the supergraph
// SDL named by setting.SupergraphSDLFile.
func New(setting Setting, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src, err := os.ReadFile(setting.SupergraphSDLFile)
	if err != nil {
		return nil, fmt.Errorf("gateway: read supergraph SDL: %w", err)
	}

	sch, err := composeSupergraph(src)
	if err != nil {
		return nil, fmt.Errorf("gateway: compose supergraph: %w", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if setting.Opentelemetry.Tracing.Enable {
		httpClient.Transport = otelTransport()
	}

	return &Gateway{
		setting:    setting,
		logger:     logger,
		schema:     sch,
		httpClient: httpClient,
		pq:         make(map[string]string),
	}, nil
}

func composeSupergraph(sdl []byte) (*schema.Schema, error) {
	l := lexer.New(string(sdl))
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse supergraph SDL: %v", p.Errors())
	}
	return schema.NewBuilder().Build(doc)
}

// SetSchema atomically swaps the serving schema, called by the registry
// handler after a successful new composition.
func (g *Gateway) SetSchema(sch *schema.Schema) {
	g.mu.Lock()
	g.schema = sch
	g.mu.Unlock()
}

func (g *Gateway) currentSchema() *schema.Schema {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.schema
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
	Extensions    struct {
		PersistedQuery struct {
			Version    int    `json:"version"`
			SHA256Hash string `json:"sha256Hash"`
		} `json:"persistedQuery"`
	} `json:"extensions"`
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	logger := g.logger.With("request_id", requestID)

	ctx, span := tracer.Start(r.Context(), "gateway.request")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.request_id", requestID))

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeErrors(w, http.StatusBadRequest, err)
		return
	}

	query, err := g.resolveQueryText(req)
	if err != nil {
		g.writeErrors(w, http.StatusOK, err)
		return
	}

	span.SetAttributes(attribute.String("graphql.operation.name", req.OperationName))

	resp, err := g.run(ctx, query, req.OperationName, req.Variables)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("request failed", "error", err, "operation", req.OperationName)
		g.writeErrors(w, http.StatusOK, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// resolveQueryText returns req.Query, or a persisted query previously
// registered under req.Extensions.PersistedQuery.SHA256Hash when
// PersistedQueries.Enable is set and the client sent a hash instead of text
// (Apollo's APQ protocol: store-on-miss with the query text, replay by hash
// thereafter).
func (g *Gateway) resolveQueryText(req graphQLRequest) (string, error) {
	hash := req.Extensions.PersistedQuery.SHA256Hash
	if !g.setting.PersistedQueries.Enable || hash == "" {
		return req.Query, nil
	}

	if req.Query == "" {
		g.pqMu.RLock()
		cached, ok := g.pq[hash]
		g.pqMu.RUnlock()
		if !ok {
			return "", fmt.Errorf("PersistedQueryNotFound")
		}
		return cached, nil
	}

	sum := sha256.Sum256([]byte(req.Query))
	if hex.EncodeToString(sum[:]) != hash {
		return "", fmt.Errorf("provided sha256Hash does not match query")
	}
	g.pqMu.Lock()
	g.pq[hash] = req.Query
	g.pqMu.Unlock()
	return req.Query, nil
}

// run plans and executes one operation against the gateway's current
// schema: parse -> federation/operation bridge -> federation/opgraph ->
// federation/planner -> federation/executor.
func (g *Gateway) run(ctx context.Context, query, operationName string, variables map[string]any) (map[string]interface{}, error) {
	sch := g.currentSchema()

	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse error: %v", p.Errors())
	}

	opDoc, err := operation.Build(sch, doc, operationName)
	if err != nil {
		return nil, err
	}

	_, opSpan := tracer.Start(ctx, "gateway.opgraph")
	og, err := opgraph.Build(sch, opDoc)
	opSpan.End()
	if err != nil {
		return nil, err
	}

	_, planSpan := tracer.Start(ctx, "gateway.plan")
	dag, err := planner.Solve(sch, opDoc, og)
	planSpan.End()
	if err != nil {
		return nil, err
	}

	_, execSpan := tracer.Start(ctx, "gateway.execute")
	defer execSpan.End()
	return executor.New(g.httpClient, sch, opDoc).Execute(ctx, dag, variables)
}

func (g *Gateway) writeErrors(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{"message": err.Error()}},
	})
}
