package detections

import (
	"context"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/Yousefhamdy22/ProjectGradution/models"
)

// Runner executes the detection model on one input tensor and returns its flat output.
// Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, input *Tensor) ([]float32, error)
}

type Options struct {
	InputWidth   int
	InputHeight  int
	Stride       int
	RescaleBoxes bool // map boxes to original image pixels instead of model space
	Filter       FilterOptions
}

func DefaultOptions() Options {
	return Options{
		InputWidth:  InputWidth,
		InputHeight: InputHeight,
		Stride:      RecordStride,
		Filter:      DefaultFilterOptions(),
	}
}

// Pipeline turns uploaded image bytes into labeled detections.
// The runner and label table are shared read-only; everything else is per request.
type Pipeline struct {
	log    logs.Log
	runner Runner
	labels LabelTable
	opt    Options
	stats  StageStats
}

func NewPipeline(log logs.Log, runner Runner, labels LabelTable, opt Options) *Pipeline {
	if opt.InputWidth <= 0 {
		opt.InputWidth = InputWidth
	}
	if opt.InputHeight <= 0 {
		opt.InputHeight = InputHeight
	}
	if opt.Stride <= 0 {
		opt.Stride = RecordStride
	}
	return &Pipeline{
		log:    log,
		runner: runner,
		labels: labels,
		opt:    opt,
	}
}

func (p *Pipeline) Labels() LabelTable {
	return p.labels
}

func (p *Pipeline) Options() Options {
	return p.opt
}

func (p *Pipeline) Stats() map[string]StageSummary {
	return p.stats.Snapshot()
}

// Detect runs every stage in order and stops at the first failure, which is returned
// as a *StageError. timings may be nil.
func (p *Pipeline) Detect(ctx context.Context, data []byte, timings *models.ProcessingTimings) ([]models.Detection, error) {
	if timings == nil {
		timings = &models.ProcessingTimings{}
	}
	startTotal := time.Now()

	decodeStart := time.Now()
	img, err := DecodeImage(data)
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		return nil, p.failed(StageDecoding, err)
	}
	p.stats.add(StageDecoding, timings.ImageDecode)
	origW, origH := img.Bounds().Dx(), img.Bounds().Dy()

	resizeStart := time.Now()
	resized := ResizeImage(img, p.opt.InputWidth, p.opt.InputHeight)
	timings.Resize = time.Since(resizeStart)

	prepStart := time.Now()
	input := FillTensor(resized)
	timings.Preprocess = time.Since(prepStart)
	p.stats.add(StageResizing, timings.Resize+timings.Preprocess)

	inferStart := time.Now()
	output, err := p.runner.Run(ctx, input)
	timings.Inference = time.Since(inferStart)
	if err != nil {
		return nil, p.failed(StageInferring, err)
	}
	p.stats.add(StageInferring, timings.Inference)

	postStart := time.Now()
	candidates, err := DecodeOutput(output, p.opt.Stride)
	if err != nil {
		timings.Postprocess = time.Since(postStart)
		return nil, p.failed(StageDecodingOutput, err)
	}
	decoded := len(candidates)
	candidates = FilterCandidates(candidates, p.opt.Filter)
	timings.Postprocess = time.Since(postStart)
	p.stats.add(StageDecodingOutput, timings.Postprocess)
	if p.opt.Filter.Enabled {
		p.log.Debugf("Post-filter kept %v of %v candidates", len(candidates), decoded)
	}

	labelStart := time.Now()
	result := make([]models.Detection, 0, len(candidates))
	for _, c := range candidates {
		box := c.Box
		if p.opt.RescaleBoxes {
			box = rescaleBox(box, p.opt.InputWidth, p.opt.InputHeight, origW, origH)
		}
		result = append(result, models.Detection{
			BoundingBox: box,
			Confidence:  c.Confidence,
			Label:       p.labels.ResolveClass(c.ClassIndex),
		})
	}
	timings.Labeling = time.Since(labelStart)
	p.stats.add(StageResolvingLabels, timings.Labeling)

	timings.Total = time.Since(startTotal)
	p.stats.add(StageDone, timings.Total)
	return result, nil
}

func (p *Pipeline) failed(stage Stage, err error) error {
	p.stats.fail(stage)
	return &StageError{Stage: stage, Err: err}
}
