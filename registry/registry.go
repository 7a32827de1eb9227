// Package registry accepts a freshly composed supergraph SDL and swaps it
// into a running gateway.Gateway, the adapted counterpart of the teacher's
// registry/registry.go (which instead accepted a list of per-subgraph SDLs
// and fanned registration out to every known gateway host). Composition in
// this module already happens against one pre-joined supergraph document
// (federation/schema.Builder.Build), so there is nothing left to fan out:
// registering a new supergraph is a single parse-compose-swap.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/graphfed/supergraph-planner/federation/schema"
	"github.com/graphfed/supergraph-planner/gateway"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// Registry serves the schema registration endpoint and swaps gw's schema
// on a successful push.
type Registry struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

func New(gw *gateway.Gateway, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{gw: gw, logger: logger}
}

var _ http.Handler = (*Registry)(nil)

// RegistrationRequest carries the new supergraph SDL to compose and serve.
type RegistrationRequest struct {
	SupergraphSDL string `json:"supergraph_sdl"`
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch {
	case req.URL.Path == "/schema/registration" && req.Method == http.MethodPost:
		r.registerSchema(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (r *Registry) registerSchema(w http.ResponseWriter, req *http.Request) {
	var body RegistrationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "failed to decode registration request", http.StatusBadRequest)
		return
	}

	sch, err := compose(body.SupergraphSDL)
	if err != nil {
		r.logger.Error("schema registration rejected", "error", err)
		http.Error(w, fmt.Sprintf("failed to compose supergraph: %v", err), http.StatusBadRequest)
		return
	}

	r.gw.SetSchema(sch)
	r.logger.Info("schema registration accepted", "subgraphs", sch.SubgraphCount())
	w.WriteHeader(http.StatusNoContent)
}

func compose(sdl string) (*schema.Schema, error) {
	l := lexer.New(sdl)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse supergraph SDL: %v", p.Errors())
	}
	return schema.NewBuilder().Build(doc)
}
