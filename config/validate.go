package config

import (
	"fmt"
	"net"
	"strings"
)

// MinDevJWTSecretLength guards the dev_* RPC methods against trivially
// guessable secrets.
var MinDevJWTSecretLength = 16

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}
	if _, _, err := net.SplitHostPort(cfg.RPCAddress); err != nil {
		return fmt.Errorf("rpc: invalid RPCAddress %q: %w", cfg.RPCAddress, err)
	}
	switch cfg.DBBackend {
	case BackendLevelDB, BackendBolt:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return fmt.Errorf("storage: DataDir required for %s backend", cfg.DBBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage: unknown DBBackend %q", cfg.DBBackend)
	}
	if cfg.RateLimitPerSecond < 0 || cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.DevMode {
		if len(cfg.DevJWTSecret) < MinDevJWTSecretLength {
			return fmt.Errorf("rpc: DevJWTSecret must be at least %d characters in dev mode", MinDevJWTSecretLength)
		}
	} else if cfg.DevJWTSecret != "" {
		return fmt.Errorf("rpc: DevJWTSecret set but DevMode disabled")
	}
	if (cfg.Telemetry.Metrics || cfg.Telemetry.Traces) && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when exporters are enabled")
	}
	return nil
}
