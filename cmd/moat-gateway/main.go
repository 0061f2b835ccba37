// Command moat-gateway runs the Moat execution gateway (spec §4.9, §6):
// the HTTP surface for POST /execute/{capability_id}, POST /intents/inbound,
// and GET /healthz.
package main

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jeremylongshore/moat/pkg/moat/adapter"
	"github.com/jeremylongshore/moat/pkg/moat/capcache"
	"github.com/jeremylongshore/moat/pkg/moat/config"
	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/gateway"
	"github.com/jeremylongshore/moat/pkg/moat/idempotency"
	"github.com/jeremylongshore/moat/pkg/moat/intentbridge"
	"github.com/jeremylongshore/moat/pkg/moat/observability"
	"github.com/jeremylongshore/moat/pkg/moat/policy"
	"github.com/jeremylongshore/moat/pkg/moat/receipthook"
	"github.com/jeremylongshore/moat/pkg/moat/trust"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.Default()
	cfg := config.Load()
	ctx := context.Background()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "moat-gateway",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
		Enabled:      cfg.OTLPEndpoint != "",
		Insecure:     cfg.Environment != "prod",
	})
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 1
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	signingKey, chainErr := loadSigningKey(cfg.IRSBSolverKeyPath)
	if chainErr != nil {
		logger.Warn("receipt chain signing key unavailable, running dry_run_no_key", "error", chainErr)
	}

	hook, err := receipthook.New(receipthook.Config{
		DryRun:            cfg.IRSBDryRun,
		RPCURL:            cfg.IRSBRPCURL,
		SigningKey:        signingKey,
		ChainID:           cfg.IRSBChainID,
		ReceiptHubAddress: cfg.IRSBReceiptHubAddress,
		SolverID:          1,
	})
	if err != nil {
		logger.Error("receipt hook init failed", "error", err)
		return 1
	}

	adapters := adapter.NewRegistry(adapter.NewStubAdapter())
	proxyAdapter := adapter.NewHTTPProxyAdapter(strings.Join(cfg.HTTPProxyDomainAllowlist, ","), 10)
	adapters.Register(proxyAdapter)

	gw := gateway.New(gateway.Gateway{
		Capabilities: capcache.New(capcache.NewMemoryRegistry()),
		Policy:       &policy.Engine{},
		Bundles:      gateway.NewMemoryBundleStore(),
		Idempotency:  idempotency.NewMemoryStore(),
		Adapters:     adapters,
		Spend:        gateway.NewMemorySpendTracker(),
		Trust:        trust.New(trust.Thresholds{MinSuccessRate7d: cfg.MinSuccessRate7d, MaxP95LatencyMS: cfg.MaxP95LatencyMS}),
		ReceiptHook:  hook,
		Logger:       logger,
	}, 4)
	defer gw.Close()

	bridge := intentbridge.New(gatewayExecutorAdapter{gw}, intentbridge.NewMemoryAgentRegistry(), nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/execute/", gw.HandleExecute)
	mux.HandleFunc("/intents/inbound", gw.HandleInboundIntent(bridge))
	mux.HandleFunc("/healthz", gw.HandleHealthz)

	var validator *gateway.Validator // JWKS wiring is deployment-specific; nil fails closed unless AUTH_DISABLED
	handler := gateway.RequireTenant(validator, cfg.AuthEffectivelyDisabled())(mux)

	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("moat-gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("moat-gateway shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}

// gatewayExecutorAdapter bridges gateway.Gateway's ExecuteRequest type to
// the distinct (but field-identical) type intentbridge.Executor expects,
// avoiding the import cycle documented in spec §9.
type gatewayExecutorAdapter struct {
	gw *gateway.Gateway
}

func (a gatewayExecutorAdapter) Execute(ctx context.Context, capabilityID string, req intentbridge.ExecuteRequest, callerTenantID string, bypassTenantCheck bool) (*contracts.Receipt, error) {
	return a.gw.Execute(ctx, capabilityID, gateway.ExecuteRequest{
		Params:         req.Params,
		TenantID:       req.TenantID,
		Scope:          req.Scope,
		IdempotencyKey: req.IdempotencyKey,
	}, callerTenantID, bypassTenantCheck)
}

func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return nil, nil
	}
	return crypto.LoadECDSA(path)
}
