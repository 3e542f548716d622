// Command leadflow runs the lead qualification sales pipeline.
//
// Usage:
//
//	leadflow kickoff                        # run the pipeline once
//	leadflow kickoff --config config.yaml   # with a config file
//	leadflow plot                           # print the stage graph as DOT
//	leadflow version                        # show version information
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/leadflow"
	"github.com/BaSui01/leadflow/config"
)

// Injected at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "kickoff":
		runKickoff(os.Args[2:])
	case "plot":
		runPlot(os.Args[2:])
	case "version":
		fmt.Printf("leadflow %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runKickoff(args []string) {
	fs := flag.NewFlagSet("kickoff", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting leadflow",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	p, err := leadflow.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to assemble pipeline", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	drafts, err := p.Kickoff(ctx)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	logger.Info("pipeline completed", zap.Int("emails", len(drafts)))
	for _, draft := range drafts {
		fmt.Printf("--- %s <%s> ---\n%s\n\n", draft.LeadName, draft.To, draft.Body)
	}
}

func runPlot(args []string) {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	p, err := leadflow.New(cfg, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to assemble pipeline: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(p.Plot())
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printUsage() {
	fmt.Println(`leadflow - lead qualification pipeline

Usage:
  leadflow <command> [options]

Commands:
  kickoff   Run the pipeline once
  plot      Print the stage graph in Graphviz DOT form
  version   Show version information
  help      Show this help message

Options for 'kickoff' and 'plot':
  --config <path>   Path to configuration file (YAML)

Options for 'kickoff':
  --timeout <dur>   Overall run timeout (default 30m)`)
}
