package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/couchcryptid/hazard-predict/internal/adapter/httpadapter"
	"github.com/couchcryptid/hazard-predict/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-predict/internal/adapter/predictapi"
	"github.com/couchcryptid/hazard-predict/internal/config"
	"github.com/couchcryptid/hazard-predict/internal/controller"
	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/couchcryptid/hazard-predict/internal/observability"
)

// app is the wired client: config, logger, predictor stack and controller.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	table   *domain.HazardTable
	ctrl    *controller.Controller

	writer  *kafka.Writer
	srv     *httpadapter.Server
	logFile *os.File
}

// loadTable returns the hazard table from HAZARD_TABLE_FILE or the built-in one.
func loadTable(cfg *config.Config) (*domain.HazardTable, error) {
	if cfg.HazardTableFile == "" {
		return domain.DefaultHazardTable(), nil
	}
	return domain.LoadHazardTable(cfg.HazardTableFile)
}

// newApp wires the client. Logs go to LOG_FILE when set, otherwise to logOut.
// hazard may be empty to start on the table's first entry.
func (e *env) newApp(logOut io.Writer, hazard string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &exitError{code: exitRejected, msg: fmt.Sprintf("config: %v", err)}
	}

	a := &app{cfg: cfg}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		logOut = f
	}
	a.logger = observability.NewLogger(cfg, logOut)
	a.metrics = e.newMetrics()

	a.table, err = loadTable(cfg)
	if err != nil {
		a.closeLog()
		return nil, &exitError{code: exitRejected, msg: err.Error()}
	}

	var opts []controller.Option
	if hazard != "" {
		h, err := a.table.Parse(hazard)
		if err != nil {
			a.closeLog()
			return nil, &exitError{code: exitRejected, msg: err.Error()}
		}
		opts = append(opts, controller.WithHazard(h))
	}

	var predictor domain.Predictor = predictapi.NewClient(cfg.PredictBaseURL, cfg.PredictTimeout, a.metrics, a.logger)
	if cfg.PredictCacheSize > 0 {
		predictor = predictapi.NewCachedPredictor(predictor, cfg.PredictCacheSize, a.metrics)
		a.logger.Info("prediction cache enabled", "size", cfg.PredictCacheSize)
	}

	if cfg.PublishEnabled() {
		a.writer = kafka.NewWriter(cfg, a.logger)
		opts = append(opts, controller.WithPublisher(a.writer))
		a.logger.Info("prediction events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaResultTopic)
	}

	a.ctrl = controller.New(a.table, predictor, a.metrics, a.logger, opts...)
	a.logger.Info("client ready",
		"base_url", cfg.PredictBaseURL,
		"timeout", cfg.PredictTimeout,
		"hazards", a.table.Types(),
	)
	return a, nil
}

// startOpsServer serves health, readiness and metrics when HTTP_ADDR is set.
func (a *app) startOpsServer() {
	if a.cfg.HTTPAddr == "" {
		return
	}
	a.srv = httpadapter.NewServer(a.cfg.HTTPAddr, a.ctrl, a.logger)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("ops server error", "error", err)
		}
	}()
}

// close releases everything newApp and startOpsServer acquired.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("ops server shutdown error", "error", err)
		}
	}
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	a.logger.Info("shutdown complete")
	a.closeLog()
}

func (a *app) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
