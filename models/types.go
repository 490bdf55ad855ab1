package models

import "time"

// BoundingBox is in the model's output coordinate space unless the pipeline
// was configured to rescale boxes to the original image.
type BoundingBox struct {
	XMin float32 `json:"xMin"`
	YMin float32 `json:"yMin"`
	XMax float32 `json:"xMax"`
	YMax float32 `json:"yMax"`
}

func (b BoundingBox) Width() float32 {
	return b.XMax - b.XMin
}

func (b BoundingBox) Height() float32 {
	return b.YMax - b.YMin
}

type Detection struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Confidence  float32     `json:"confidence"`
	Label       string      `json:"label"`
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Resize      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Labeling    time.Duration
	Total       time.Duration
}
