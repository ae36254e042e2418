// cmd/ingest/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/transitops/wmata-ingress/pkg/config"
	"github.com/transitops/wmata-ingress/pkg/connector"
	"github.com/transitops/wmata-ingress/pkg/contract"
	"github.com/transitops/wmata-ingress/pkg/extractor"
	"github.com/transitops/wmata-ingress/pkg/loader"
	"github.com/transitops/wmata-ingress/pkg/pipeline"
	"github.com/transitops/wmata-ingress/pkg/transformer"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := buildLogger(cfg)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Ingress run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	conn, err := connector.NewPostgresConnector(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Validate(); err != nil {
		return err
	}

	ext := extractor.New(logger)

	stopsSource := newSource(cfg, "/jStops", "Stops")
	positionsSource := newSource(cfg, "/jBusPositions", "BusPositions")

	feeds := []struct {
		contract *contract.Contract
		source   extractor.SourceConfig
		extract  pipeline.Extractor
	}{
		{contract: contract.BusStops(), source: stopsSource, extract: ext},
		{contract: contract.BusPositions(), source: positionsSource, extract: ext},
		{
			contract: contract.StopRoutes(),
			source:   stopsSource,
			extract:  &pipeline.ExplodingExtractor{Inner: ext, Keep: []string{"StopID"}, ListField: "Routes"},
		},
	}

	for _, feed := range feeds {
		ldr, err := loader.NewLoader(conn, feed.contract, logger)
		if err != nil {
			return err
		}
		ldr.WithBatchSize(cfg.BatchSize).WithFailFast(cfg.FailFast)

		p := pipeline.New(
			feed.extract,
			transformer.New(feed.contract, logger),
			ldr,
			feed.source,
			feed.contract,
			logger,
		)

		summary, err := p.Run(ctx)
		if err != nil {
			return err
		}

		logger.Info("Run summary",
			zap.String("runID", summary.RunID),
			zap.String("contract", summary.Contract),
			zap.Int("pages", summary.Pages),
			zap.Int("extracted", summary.Extracted),
			zap.Int("clean", summary.Clean),
			zap.Int("deduplicated", summary.Deduplicated),
			zap.Int("rejected", summary.RejectedCount()),
			zap.Any("rejectReasons", summary.RejectReasons),
			zap.Int("inserted", summary.Inserted),
			zap.Int("updated", summary.Updated),
			zap.Int("unchanged", summary.Unchanged),
			zap.Int("failedBatches", summary.FailedBatches),
			zap.Duration("duration", summary.Duration))
	}

	return nil
}

// newSource builds a feed's extraction settings, carrying every API
// knob from the configuration, pagination included
func newSource(cfg *config.Config, endpoint, dataField string) extractor.SourceConfig {
	return extractor.SourceConfig{
		Endpoint:       cfg.API.BaseURL + endpoint,
		DataField:      dataField,
		Headers:        map[string]string{"api_key": cfg.API.APIKey},
		PageSize:       cfg.API.PageSize,
		MaxPages:       cfg.API.MaxPages,
		RequestTimeout: cfg.API.RequestTimeout,
		RetryAttempts:  cfg.API.RetryAttempts,
		RetryDelay:     cfg.API.RetryDelay,
		Workers:        cfg.FetchWorkers,
	}
}

func buildLogger(cfg *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
