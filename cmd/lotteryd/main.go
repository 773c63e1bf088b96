package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lotterychain/cmd/internal/passphrase"
	"lotterychain/config"
	"lotterychain/core"
	"lotterychain/crypto"
	"lotterychain/explorer"
	"lotterychain/observability/logging"
	"lotterychain/observability/otel"
	"lotterychain/rpc"
	"lotterychain/storage"
)

const (
	ownerPassEnv = "LOTTERY_OWNER_PASS"
	envVar       = "LOTTERY_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "lotteryd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	var logOpts []logging.Option
	if strings.TrimSpace(cfg.LogFile) != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.LogFile, 0, 0))
	}
	logger := logging.Setup("lotteryd", env, logOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: "lotteryd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	owner, err := loadOwnerKey(cfg.KeystorePath, passphrase.NewSource(ownerPassEnv, "owner").Get)
	if err != nil {
		return fmt.Errorf("load owner key: %w", err)
	}
	spec, err := resolveGenesis(cfg, genesisFlag, owner.PubKey().Address().String())
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DBBackend, filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	opts := []core.Option{core.WithLogger(logger)}
	if cfg.DevMode {
		opts = append(opts, core.WithClock(core.NewManualClock(time.Now())))
	}

	var indexer *explorer.Indexer
	if dsn := explorerDSN(cfg); dsn != "" {
		gdb, err := explorer.Open(dsn)
		if err != nil {
			return err
		}
		indexer = explorer.NewIndexer(gdb, logger)
		defer indexer.Close()
		opts = append(opts, core.WithBlockSink(indexer))
	}

	node, err := core.NewNode(db, spec, opts...)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if cfg.ChainID != 0 && node.ChainID() != cfg.ChainID {
		return fmt.Errorf("stored chain id %d does not match configured %d", node.ChainID(), cfg.ChainID)
	}
	if indexer != nil {
		if _, err := indexer.CatchUp(ctx, node); err != nil {
			return fmt.Errorf("explorer catch-up: %w", err)
		}
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		DevMode:            cfg.DevMode,
		DevJWTSecret:       cfg.DevJWTSecret,
	}, logger)
	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPCAddress, err)
	}

	logger.Info("lotteryd started",
		slog.Uint64("chain_id", node.ChainID()),
		slog.String("owner", owner.PubKey().Address().String()),
		slog.Bool("dev_mode", cfg.DevMode))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown failed", slog.Any("error", err))
	}
	if indexer != nil && strings.TrimSpace(cfg.ExportDir) != "" {
		path, err := indexer.ExportRounds(shutdownCtx, cfg.ExportDir)
		if err != nil {
			logger.Warn("round export failed", slog.Any("error", err))
		} else {
			logger.Info("round history exported", slog.String("path", path))
		}
	}
	return nil
}

// loadOwnerKey opens the owner keystore, first with the empty passphrase
// written by a fresh config and then with the operator's passphrase.
func loadOwnerKey(path string, pass func() (string, error)) (*crypto.PrivateKey, error) {
	key, err := crypto.LoadFromKeystore(path, "")
	if err == nil {
		return key, nil
	}
	secret, perr := pass()
	if perr != nil {
		return nil, errors.Join(err, perr)
	}
	return crypto.LoadFromKeystore(path, secret)
}

func explorerDSN(cfg *config.Config) string {
	dsn := strings.TrimSpace(cfg.ExplorerDSN)
	if dsn == "-" {
		return ""
	}
	if dsn == "" && cfg.DBBackend != config.BackendMemory {
		return filepath.Join(cfg.DataDir, "explorer.db")
	}
	return dsn
}
