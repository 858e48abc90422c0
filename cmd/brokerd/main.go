package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsinin/message-broker/internal/broker"
	"github.com/tsinin/message-broker/internal/config"
	"github.com/tsinin/message-broker/internal/model"
	"github.com/tsinin/message-broker/internal/server"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("brokerd %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("broker starting",
		zap.String("version", version),
		zap.String("config", *configPath))

	storageType, known := model.ParseStorageType(cfg.Storage.Type)
	if !known {
		logger.Warn("unknown storage type, falling back",
			zap.String("value", cfg.Storage.Type),
			zap.Stringer("fallback", storageType))
	}
	queueType, known := model.ParseQueueType(cfg.Storage.Queue)
	if !known {
		logger.Warn("unknown queue type, falling back",
			zap.String("value", cfg.Storage.Queue),
			zap.Stringer("fallback", queueType))
	}

	storage := broker.New(storageType, queueType, logger)

	tcpSrv := server.NewTCPServer(storage, server.Options{
		Address:    cfg.Server.Address,
		Port:       cfg.Server.Port,
		Threads:    cfg.Threads,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		BufferSize: cfg.MaxMessageSize,
	}, logger)
	if err := tcpSrv.Start(); err != nil {
		logger.Fatal("failed to start TCP server", zap.Error(err))
	}

	var httpSrv *server.HTTPServer
	if cfg.Server.HTTP.Enabled {
		httpSrv = server.NewHTTPServer(storage, cfg.Server.HTTP.Port, logger)
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}

	logger.Info("broker is ready",
		zap.String("addr", tcpSrv.Addr().String()),
		zap.Bool("http", cfg.Server.HTTP.Enabled),
		zap.Stringer("storage", storageType),
		zap.Stringer("queue", queueType))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		tcpSrv.Stop()
	case <-tcpSrv.Done():
		// Deadline expired; the server stopped itself.
	}

	if httpSrv != nil {
		httpSrv.Stop()
	}

	logger.Info("broker stopped")
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	default:
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
