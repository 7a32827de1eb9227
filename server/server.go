// Package server owns process lifecycle: loading gateway.Setting from yaml,
// starting the tracer, serving HTTP, and a graceful shutdown on SIGINT/
// SIGTERM. Adapted from the teacher's server/gateway.go, which does the
// same for its gateway.NewGateway; this version additionally mounts
// registry.Registry on the same process so a schema push can reach a
// locally-run gateway without a separate service.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/graphfed/supergraph-planner/gateway"
	"github.com/graphfed/supergraph-planner/registry"
)

const gatewayVersion = "v0.1.0"

// Run loads gateway.yaml from the working directory, builds the gateway and
// registry, and serves until SIGINT/SIGTERM, then drains in-flight
// requests before exiting.
func Run() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	setting, err := loadSetting("gateway.yaml")
	if err != nil {
		log.Fatalf("failed to load gateway settings: %v", err)
	}

	gw, err := gateway.New(*setting, logger)
	if err != nil {
		log.Fatalf("failed to build gateway: %v", err)
	}
	reg := registry.New(gw, logger)

	mux := http.NewServeMux()
	mux.Handle(setting.Endpoint, gw)
	mux.Handle("/schema/registration", reg)

	var handler http.Handler = mux
	var shutdownTracer func(context.Context) error = func(context.Context) error { return nil }
	if setting.Opentelemetry.Tracing.Enable {
		handler = otelhttp.NewHandler(mux, setting.ServiceName)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		shutdownTracer, err = gateway.InitTracer(ctx, setting.ServiceName, gatewayVersion)
		cancel()
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
	}

	timeoutDuration, err := time.ParseDuration(setting.TimeoutDuration)
	if err != nil {
		log.Fatalf("failed to parse timeout duration: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", setting.Port),
		Handler: handler,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("starting gateway server", "port", setting.Port, "endpoint", setting.Endpoint)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeoutDuration)
	defer shutdownCancel()

	logger.Info("shutting down gateway server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("failed to shutdown gateway server: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Fatalf("failed to shutdown tracer: %v", err)
	}
	logger.Info("gateway server stopped")
}

func loadSetting(path string) (*gateway.Setting, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway settings file: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway settings file: %w", err)
	}

	var setting gateway.Setting
	if err := yaml.Unmarshal(b, &setting); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway settings: %w", err)
	}
	return &setting, nil
}

const defaultGatewayYAML = `endpoint: /graphql
service_name: supergraph-planner-gateway
port: 4000
timeout_duration: 5s
supergraph_sdl_file: supergraph.graphql
registration_addr: :8080
persisted_queries:
  enable: false
opentelemetry:
  tracing:
    enable: false
`

// Init scaffolds a gateway.yaml in the working directory, the counterpart
// of the teacher's "init" subcommand (server.Init, invoked from
// cmd/federation-gateway/main.go's initCmd).
func Init() error {
	if _, err := os.Stat("gateway.yaml"); err == nil {
		return fmt.Errorf("gateway.yaml already exists")
	}
	return os.WriteFile("gateway.yaml", []byte(defaultGatewayYAML), 0o644)
}
