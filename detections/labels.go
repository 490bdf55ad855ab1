package detections

import "math"

// LabelTable maps class indices to names. It is never modified after construction,
// so a single table is shared by all requests.
type LabelTable struct {
	names []string
}

func NewLabelTable(names []string) LabelTable {
	return LabelTable{names: append([]string(nil), names...)}
}

func (t LabelTable) Len() int {
	return len(t.names)
}

func (t LabelTable) Names() []string {
	return append([]string(nil), t.names...)
}

// Resolve returns the name for index, or UnknownLabel if index is out of range.
func (t LabelTable) Resolve(index int) string {
	if index < 0 || index >= len(t.names) {
		return UnknownLabel
	}
	return t.names[index]
}

// ResolveClass resolves a class index as emitted by the model. Fractions are
// truncated toward zero; NaN and infinities resolve to UnknownLabel.
func (t LabelTable) ResolveClass(class float32) string {
	f := float64(class)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return UnknownLabel
	}
	f = math.Trunc(f)
	if f < 0 || f >= float64(len(t.names)) {
		return UnknownLabel
	}
	return t.names[int(f)]
}
