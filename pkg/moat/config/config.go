// Package config loads gateway/trust-engine configuration from the
// environment. A flat struct populated from os.Getenv with inline
// defaults — no config library — matching pkg/config/config.go's shape.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the full set of environment-driven settings for both the
// moat-gateway and moat-trust binaries.
type Config struct {
	Host        string
	Port        string
	LogLevel    string
	Environment string // local|test|dev|staging|prod

	JWTSecret    string
	AuthDisabled bool // only honored outside prod, see AuthEffectivelyDisabled
	CORSOrigins  []string

	HTTPProxyDomainAllowlist []string
	HTTPTimeoutSeconds       int

	IRSBRPCURL            string
	IRSBSolverKeyPath     string
	IRSBDryRun            bool
	IRSBChainID           int64
	IRSBReceiptHubAddress string

	MinSuccessRate7d float64
	MaxP95LatencyMS  float64

	ControlPlaneURL string
	TrustEngineURL  string

	OTLPEndpoint string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the environment, applying the reference
// deployment's defaults (spec §6).
func Load() *Config {
	return &Config{
		Host:        getenv("HOST", "0.0.0.0"),
		Port:        getenv("PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "INFO"),
		Environment: getenv("ENVIRONMENT", "local"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		AuthDisabled: getenvBool("AUTH_DISABLED", false),
		CORSOrigins:  getenvCSV("CORS_ORIGINS"),

		HTTPProxyDomainAllowlist: getenvCSV("HTTP_PROXY_DOMAIN_ALLOWLIST"),
		HTTPTimeoutSeconds:       int(getenvInt64("HTTP_TIMEOUT_SECONDS", 30)),

		IRSBRPCURL:            getenv("IRSB_RPC_URL", os.Getenv("SEPOLIA_RPC_URL")),
		IRSBSolverKeyPath:     os.Getenv("IRSB_SOLVER_KEY_PATH"),
		IRSBDryRun:            getenvBool("IRSB_DRY_RUN", true),
		IRSBChainID:           getenvInt64("IRSB_CHAIN_ID", 11155111), // Sepolia
		IRSBReceiptHubAddress: os.Getenv("IRSB_RECEIPT_HUB_ADDRESS"),

		MinSuccessRate7d: getenvFloat("MIN_SUCCESS_RATE_7D", 0.80),
		MaxP95LatencyMS:  getenvFloat("MAX_P95_LATENCY_MS", 10000),

		ControlPlaneURL: os.Getenv("CONTROL_PLANE_URL"),
		TrustEngineURL:  os.Getenv("TRUST_ENGINE_URL"),

		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// AuthEffectivelyDisabled reports whether bearer-token auth may be
// skipped: AUTH_DISABLED must be explicitly set AND the environment must
// not be prod, a fail-closed guard against misconfiguration reaching
// production (spec §6 Authentication).
func (c *Config) AuthEffectivelyDisabled() bool {
	return c.AuthDisabled && c.Environment != "prod"
}
