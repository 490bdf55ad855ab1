package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/Yousefhamdy22/ProjectGradution/config"
	"github.com/Yousefhamdy22/ProjectGradution/detections"
	"github.com/Yousefhamdy22/ProjectGradution/inference"
)

func main() {
	parser := argparse.NewParser("detection-service", "Object detection HTTP service")
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: ""})
	modelFile := parser.String("m", "model", &argparse.Options{Help: "Path to ONNX model file (overrides config)", Default: ""})
	addr := parser.String("", "addr", &argparse.Options{Help: "Listen address, eg :8080 (overrides config)", Default: ""})
	debug := parser.Flag("", "debug", &argparse.Options{Help: "Log per-request stage timings", Default: false})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := run(logger, *configFile, *modelFile, *addr, *debug); err != nil {
		logger.Criticalf("%v", err)
		logger.Close()
		os.Exit(1)
	}
}

func run(logger logs.Log, configFile, modelFile, addr string, debug bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if modelFile != "" {
		cfg.Model.Path = modelFile
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	cfg.Debug = cfg.Debug || debug

	// Fail on a missing model before paying for runtime initialization
	if err := inference.CheckModelFile(cfg.Model.Path); err != nil {
		return err
	}

	if err := inference.InitRuntime(logger, cfg.Model.RuntimeLibrary); err != nil {
		return err
	}
	defer inference.DestroyRuntime()

	model, err := inference.Load(logger, cfg.InferenceOptions())
	if err != nil {
		return err
	}
	defer model.Close()

	labels := cfg.LabelTable()
	logger.Infof("Label table has %v entries", labels.Len())

	state := &AppState{
		Log:       logger,
		Pipeline:  detections.NewPipeline(logger, model, labels, cfg.PipelineOptions()),
		Pool:      model,
		Debug:     cfg.Debug,
		RateLimit: cfg.Server.RateLimitPerMinute,
	}

	srv := &http.Server{
		Handler:      state.Router(),
		Addr:         cfg.Server.Addr,
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Infof("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
