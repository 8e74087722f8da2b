package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/config"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/core"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/observability/logging"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/rpc"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/storage"
)

const envPrefix = "NPO_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envPrefix))
	logger := logging.Setup("donationd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		panic(fmt.Sprintf("Failed to construct node: %v", err))
	}
	node.SetLogger(logger)
	node.SetFundingPeriod(time.Duration(cfg.FundingPeriodDays) * 24 * time.Hour)
	node.SetMaxExtension(time.Duration(cfg.MaxExtensionDays) * 24 * time.Hour)

	alloc, err := cfg.Alloc()
	if err != nil {
		logger.Error("Failed to decode genesis allocation", slog.Any("error", err))
		os.Exit(1)
	}
	adminAddr, hasAdmin, err := cfg.Admin()
	if err != nil {
		logger.Error("Failed to decode admin address", slog.Any("error", err))
		os.Exit(1)
	}
	var admin *[20]byte
	if hasAdmin {
		admin = &adminAddr
	}
	if err := node.InitGenesis(alloc, admin); err != nil {
		logger.Error("Failed to apply genesis", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listener started", "address", cfg.MetricsAddress)
		if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
			logger.Error("metrics listener failed", slog.Any("error", err))
		}
	}()

	server := rpc.NewServer(node, cfg.RPCAuthTokenEnv)
	logger.Info("node started",
		"network", cfg.NetworkName,
		"rpc", cfg.RPCAddress,
		"dataDir", cfg.DataDir,
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
