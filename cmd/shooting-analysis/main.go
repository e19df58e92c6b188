// Command shooting-analysis runs the NYPD shooting incident analysis: it
// acquires the incident extract, cleans and encodes it, fits a logistic
// regression for the murder flag, and prints the evaluation report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/pipeline"
	"github.com/kpritch24/nypd-shooting-incident/internal/report"
	"github.com/kpritch24/nypd-shooting-incident/internal/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "configuration file (yaml or json); defaults plus environment apply when omitted")
		source      = flag.String("source", "", "override the source URL")
		input       = flag.String("input", "", "read the incident CSV from a local file instead of the URL")
		seed        = flag.Int64("seed", -1, "override the split and resampling seed")
		threshold   = flag.Float64("threshold", -1, "override the decision threshold")
		resampling  = flag.String("resampling", "", "override the resampling policy (undersample or none)")
		logFile     = flag.String("log-file", "", "write logs to this file with rotation instead of stderr")
		verbose     = flag.Bool("v", false, "debug logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	logger, err := buildLogger(*logFile, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("configuration", zap.Error(err))
		os.Exit(1)
	}
	if *source != "" {
		cfg.SourceURL = *source
	}
	if *input != "" {
		cfg.SourceFile = *input
	}
	if *seed >= 0 {
		cfg.Seed = *seed
	}
	if *threshold >= 0 {
		cfg.DecisionThreshold = *threshold
	}
	if *resampling != "" {
		cfg.Resampling = *resampling
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting analysis",
		zap.String("version", version.Info().Version),
		zap.Int64("seed", cfg.Seed),
		zap.Float64("threshold", cfg.DecisionThreshold))

	summary, err := pipeline.New(&cfg, logger, nil).Run(ctx)
	if err != nil {
		logger.Error("analysis failed", zap.Error(err))
		os.Exit(1)
	}

	if err := report.Render(os.Stdout, summary); err != nil {
		logger.Error("report", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadFromEnv(), nil
	}
	return config.LoadFromFile(path)
}

// buildLogger writes structured logs to stderr, or to a rotating file when
// one is named.
func buildLogger(logFile string, verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	if logFile == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	})
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, sink, level)), nil
}
