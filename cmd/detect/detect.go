package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/Yousefhamdy22/ProjectGradution/config"
	"github.com/Yousefhamdy22/ProjectGradution/detections"
	"github.com/Yousefhamdy22/ProjectGradution/inference"
	"github.com/Yousefhamdy22/ProjectGradution/models"
)

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("detect", "Run object detection on a single image")
	input := parser.String("i", "input", &argparse.Options{Help: "Input image file", Required: true})
	modelFile := parser.String("m", "model", &argparse.Options{Help: "Path to ONNX model file", Required: false, Default: ""})
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file", Required: false, Default: ""})
	timing := parser.Flag("t", "timing", &argparse.Options{Help: "Print stage timings to stderr", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()
	defer logger.Close()

	cfg, err := config.Load(*configFile)
	check(err)
	if *modelFile != "" {
		cfg.Model.Path = *modelFile
	}
	// A single image never needs more than one session
	cfg.Model.PoolSize = 1

	check(inference.CheckModelFile(cfg.Model.Path))
	check(inference.InitRuntime(logger, cfg.Model.RuntimeLibrary))
	defer inference.DestroyRuntime()

	model, err := inference.Load(logger, cfg.InferenceOptions())
	check(err)
	defer model.Close()

	data, err := os.ReadFile(*input)
	check(err)

	pipeline := detections.NewPipeline(logger, model, cfg.LabelTable(), cfg.PipelineOptions())
	timings := &models.ProcessingTimings{RequestID: *input}
	found, err := pipeline.Detect(context.Background(), data, timings)
	check(err)

	if *timing {
		fmt.Fprintf(os.Stderr, "decode %v, resize %v, preprocess %v, inference %v, postprocess %v, labeling %v, total %v\n",
			timings.ImageDecode, timings.Resize, timings.Preprocess, timings.Inference, timings.Postprocess, timings.Labeling, timings.Total)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	check(encoder.Encode(found))
}
