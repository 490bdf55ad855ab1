package detections

const (
	InputWidth   = 640
	InputHeight  = 640
	RecordStride = 6
	NumChannels  = 3

	UnknownLabel = "Unknown"

	DefaultConfThreshold = 0.45
	DefaultIouThreshold  = 0.5
)
