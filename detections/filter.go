package detections

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/chewxy/math32"

	"github.com/Yousefhamdy22/ProjectGradution/models"
)

// FilterOptions controls the optional post-filter. The zero value disables it,
// so every decoded record is returned.
type FilterOptions struct {
	Enabled       bool
	ConfThreshold float32 // drop candidates below this confidence
	IouThreshold  float32 // suppress same-class candidates overlapping a better one by more than this
}

func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		Enabled:       false,
		ConfThreshold: DefaultConfThreshold,
		IouThreshold:  DefaultIouThreshold,
	}
}

// FilterCandidates applies the confidence threshold and then greedy class-aware
// non-maximum suppression. Survivors are ordered by descending confidence.
func FilterCandidates(cands []Candidate, opt FilterOptions) []Candidate {
	if !opt.Enabled {
		return cands
	}

	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence >= opt.ConfThreshold {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	if len(kept) < 2 {
		return kept
	}

	// Spatial index so that each candidate is only compared against boxes it touches
	fb := flatbush.NewFlatbush[float64]()
	fb.Reserve(len(kept))
	for _, c := range kept {
		b := normalizedBox(c.Box)
		fb.Add(float64(b.XMin), float64(b.YMin), float64(b.XMax), float64(b.YMax))
	}
	fb.Finish()

	suppressed := make([]bool, len(kept))
	result := make([]Candidate, 0, len(kept))
	for i, c := range kept {
		if suppressed[i] {
			continue
		}
		result = append(result, c)
		b := normalizedBox(c.Box)
		for _, j := range fb.Search(float64(b.XMin), float64(b.YMin), float64(b.XMax), float64(b.YMax)) {
			if j <= i || suppressed[j] {
				continue
			}
			if math32.Trunc(kept[j].ClassIndex) != math32.Trunc(c.ClassIndex) {
				continue
			}
			if IOU(c.Box, kept[j].Box) > opt.IouThreshold {
				suppressed[j] = true
			}
		}
	}
	return result
}

// IOU is the intersection over union of two boxes. Inverted boxes are normalized first.
func IOU(a, b models.BoundingBox) float32 {
	a = normalizedBox(a)
	b = normalizedBox(b)
	x1 := math32.Max(a.XMin, b.XMin)
	y1 := math32.Max(a.YMin, b.YMin)
	x2 := math32.Min(a.XMax, b.XMax)
	y2 := math32.Min(a.YMax, b.YMax)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	intersection := (x2 - x1) * (y2 - y1)
	union := a.Width()*a.Height() + b.Width()*b.Height() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func normalizedBox(b models.BoundingBox) models.BoundingBox {
	return models.BoundingBox{
		XMin: math32.Min(b.XMin, b.XMax),
		YMin: math32.Min(b.YMin, b.YMax),
		XMax: math32.Max(b.XMin, b.XMax),
		YMax: math32.Max(b.YMin, b.YMax),
	}
}

// rescaleBox maps a box from the model input space to the original image size.
func rescaleBox(b models.BoundingBox, modelW, modelH, origW, origH int) models.BoundingBox {
	sx := float32(origW) / float32(modelW)
	sy := float32(origH) / float32(modelH)
	return models.BoundingBox{
		XMin: b.XMin * sx,
		YMin: b.YMin * sy,
		XMax: b.XMax * sx,
		YMax: b.YMax * sy,
	}
}
