package detections

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Yousefhamdy22/ProjectGradution/models"
)

// Candidate is one raw record of the model output, before label resolution.
type Candidate struct {
	Box        models.BoundingBox
	Confidence float32
	ClassIndex float32
}

// DecodeOutput splits the flat model output into records of stride values:
// x_min, y_min, x_max, y_max, confidence, class_index.
// Records keep the order in which the model emitted them. A NaN or infinite
// box coordinate or confidence makes the whole output malformed; the class
// index is left to the label resolver.
func DecodeOutput(output []float32, stride int) ([]Candidate, error) {
	if stride < RecordStride {
		return nil, fmt.Errorf("%w: stride %d is smaller than a record (%d)", ErrMalformedOutput, stride, RecordStride)
	}
	if len(output)%stride != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of stride %d", ErrMalformedOutput, len(output), stride)
	}

	candidates := make([]Candidate, 0, len(output)/stride)
	for i := 0; i < len(output); i += stride {
		rec := output[i : i+stride]
		for k := 0; k < 5; k++ {
			if math32.IsNaN(rec[k]) || math32.IsInf(rec[k], 0) {
				return nil, fmt.Errorf("%w: record %d has non-finite value %v", ErrMalformedOutput, i/stride, rec[k])
			}
		}
		candidates = append(candidates, Candidate{
			Box: models.BoundingBox{
				XMin: rec[0],
				YMin: rec[1],
				XMax: rec[2],
				YMax: rec[3],
			},
			Confidence: rec[4],
			ClassIndex: rec[5],
		})
	}
	return candidates, nil
}
