package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"lotterychain/crypto"
)

type Config struct {
	RPCAddress         string    `toml:"RPCAddress"`
	DataDir            string    `toml:"DataDir"`
	DBBackend          string    `toml:"DBBackend"`
	GenesisFile        string    `toml:"GenesisFile"`
	KeystorePath       string    `toml:"KeystorePath"`
	ChainID            uint64    `toml:"ChainID"`
	DevMode            bool      `toml:"DevMode"`
	DevJWTSecret       string    `toml:"DevJWTSecret"`
	RateLimitPerSecond float64   `toml:"RateLimitPerSecond"`
	RateLimitBurst     int       `toml:"RateLimitBurst"`
	ExplorerDSN        string    `toml:"ExplorerDSN"`
	ExportDir          string    `toml:"ExportDir"`
	LogFile            string    `toml:"LogFile"`
	Telemetry          Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration and a fresh owner keystore.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown field %q", path, undecoded[0].String())
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.DBBackend) == "" {
		c.DBBackend = BackendLevelDB
	}
	c.DBBackend = strings.ToLower(strings.TrimSpace(c.DBBackend))
	if c.RateLimitPerSecond == 0 {
		c.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
}

// ensureKeystore creates the owner keystore if it does not exist yet and
// records its path in the config file.
func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.KeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.KeystorePath != keystorePath {
		cfg.KeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a development configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:   DefaultRPCAddress,
		DataDir:      DefaultDataDir,
		DBBackend:    BackendLevelDB,
		GenesisFile:  filepath.Join(filepath.Dir(path), "genesis.yaml"),
		KeystorePath: keystorePath,
		DevMode:      true,
		DevJWTSecret: newDevSecret(),
		Telemetry:    Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "owner.keystore")
}

func newDevSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
