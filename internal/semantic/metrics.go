package semantic

import (
	"fmt"
	"strconv"
)

// MetricKind discriminates MetricValue variants.
type MetricKind int

const (
	KindInt MetricKind = iota
	KindFloat
	KindString
)

// MetricValue is a tagged union of the value types parsers can extract.
type MetricValue struct {
	kind MetricKind
	i    int64
	f    float64
	s    string
}

// Int wraps an integer metric value.
func Int(v int64) MetricValue { return MetricValue{kind: KindInt, i: v} }

// Float wraps a floating-point metric value.
func Float(v float64) MetricValue { return MetricValue{kind: KindFloat, f: v} }

// String wraps a string metric value.
func String(v string) MetricValue { return MetricValue{kind: KindString, s: v} }

// Kind returns the variant tag.
func (v MetricValue) Kind() MetricKind { return v.kind }

// AsInt returns the integer value and whether the variant is an int.
func (v MetricValue) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the numeric value as a float64.
// Int values are widened; string values report false.
func (v MetricValue) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the string value and whether the variant is a string.
func (v MetricValue) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v MetricValue) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// TaskMetrics is the result of one Parse call. Produced fresh per call and
// never mutated after return.
type TaskMetrics struct {
	// Progress is a completion fraction in [0, 1].
	Progress float64

	// Metrics maps metric name to its most recently extracted value.
	Metrics map[string]MetricValue

	// Phase is an optional coarse phase label (e.g. "Training").
	Phase string

	// Errors holds diagnostic strings in detection order. Duplicates allowed.
	Errors []string
}

// NewTaskMetrics returns a zero-valued result with an allocated metrics map.
func NewTaskMetrics() *TaskMetrics {
	return &TaskMetrics{Metrics: make(map[string]MetricValue)}
}

func (m *TaskMetrics) String() string {
	return fmt.Sprintf("progress=%.2f metrics=%d phase=%q errors=%d",
		m.Progress, len(m.Metrics), m.Phase, len(m.Errors))
}
