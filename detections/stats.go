package detections

import (
	"sync"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// StageStats aggregates stage durations over every request a pipeline has served.
type StageStats struct {
	mu       sync.Mutex
	stages   [StageDone + 1]TimeAccumulator // StageDone holds the total
	failures [StageDone]int64
}

func (s *StageStats) add(stage Stage, d time.Duration) {
	s.mu.Lock()
	s.stages[stage].AddSample(d)
	s.mu.Unlock()
}

func (s *StageStats) fail(stage Stage) {
	s.mu.Lock()
	s.failures[stage]++
	s.mu.Unlock()
}

type StageSummary struct {
	Samples   int64   `json:"samples"`
	AverageMS float64 `json:"average_ms"`
	Failures  int64   `json:"failures"`
}

// Snapshot returns per-stage summaries keyed by stage name; "done" is the whole request.
func (s *StageStats) Snapshot() map[string]StageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]StageSummary, len(s.stages))
	for i := range s.stages {
		sum := StageSummary{
			Samples:   s.stages[i].Samples,
			AverageMS: float64(s.stages[i].Average().Microseconds()) / 1000,
		}
		if i < len(s.failures) {
			sum.Failures = s.failures[i]
		}
		out[Stage(i).String()] = sum
	}
	return out
}
