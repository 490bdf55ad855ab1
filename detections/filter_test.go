package detections

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Yousefhamdy22/ProjectGradution/models"
)

func box(x1, y1, x2, y2 float32) models.BoundingBox {
	return models.BoundingBox{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
}

func TestIOU(t *testing.T) {
	require.Equal(t, float32(1), IOU(box(0, 0, 10, 10), box(0, 0, 10, 10)))
	require.Equal(t, float32(0), IOU(box(0, 0, 10, 10), box(20, 20, 30, 30)))
	require.Equal(t, float32(0), IOU(box(0, 0, 10, 10), box(10, 0, 20, 10)))
	require.InDelta(t, 1.0/3.0, IOU(box(0, 0, 10, 10), box(5, 0, 15, 10)), 1e-6)
	// Inverted corners describe the same box
	require.Equal(t, float32(1), IOU(box(10, 10, 0, 0), box(0, 0, 10, 10)))
	require.Equal(t, float32(0), IOU(box(5, 5, 5, 5), box(5, 5, 5, 5)))
}

func TestFilterDisabledPassesThrough(t *testing.T) {
	cands := []Candidate{
		{Box: box(0, 0, 10, 10), Confidence: 0.1, ClassIndex: 0},
		{Box: box(0, 0, 10, 10), Confidence: 0.9, ClassIndex: 0},
	}
	out := FilterCandidates(cands, DefaultFilterOptions())
	require.Equal(t, cands, out)
}

func TestFilterThresholdAndOrder(t *testing.T) {
	cands := []Candidate{
		{Box: box(0, 0, 10, 10), Confidence: 0.5, ClassIndex: 0},
		{Box: box(100, 100, 110, 110), Confidence: 0.2, ClassIndex: 0},
		{Box: box(200, 200, 210, 210), Confidence: 0.8, ClassIndex: 1},
	}
	out := FilterCandidates(cands, FilterOptions{Enabled: true, ConfThreshold: 0.45, IouThreshold: 0.5})
	require.Len(t, out, 2)
	require.Equal(t, float32(0.8), out[0].Confidence)
	require.Equal(t, float32(0.5), out[1].Confidence)
}

func TestFilterSuppressesSameClassOverlap(t *testing.T) {
	cands := []Candidate{
		{Box: box(0, 0, 10, 10), Confidence: 0.7, ClassIndex: 2},
		{Box: box(1, 1, 11, 11), Confidence: 0.9, ClassIndex: 2},
		{Box: box(0, 0, 10, 10), Confidence: 0.6, ClassIndex: 3},
		{Box: box(50, 50, 60, 60), Confidence: 0.65, ClassIndex: 2},
	}
	out := FilterCandidates(cands, FilterOptions{Enabled: true, ConfThreshold: 0, IouThreshold: 0.5})
	require.Len(t, out, 3)
	require.Equal(t, box(1, 1, 11, 11), out[0].Box)
	require.Equal(t, float32(0.65), out[1].Confidence)
	require.Equal(t, float32(3), out[2].ClassIndex)
}

func TestFilterKeepsLowOverlap(t *testing.T) {
	cands := []Candidate{
		{Box: box(0, 0, 10, 10), Confidence: 0.9, ClassIndex: 0},
		{Box: box(5, 0, 15, 10), Confidence: 0.8, ClassIndex: 0},
	}
	out := FilterCandidates(cands, FilterOptions{Enabled: true, ConfThreshold: 0, IouThreshold: 0.5})
	require.Len(t, out, 2)

	out = FilterCandidates(cands, FilterOptions{Enabled: true, ConfThreshold: 0, IouThreshold: 0.3})
	require.Len(t, out, 1)
}

func TestRescaleBox(t *testing.T) {
	b := rescaleBox(box(64, 32, 320, 640), 640, 640, 1280, 320)
	require.Equal(t, box(128, 16, 640, 320), b)
}
