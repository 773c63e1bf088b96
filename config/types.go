package config

const (
	DefaultRPCAddress         = "127.0.0.1:8545"
	DefaultDataDir            = "./lottery-data"
	DefaultRateLimitPerSecond = 20
	DefaultRateLimitBurst     = 40

	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Telemetry configures the OTLP/HTTP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}
