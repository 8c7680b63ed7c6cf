package semantic

import (
	"math"
	"regexp"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestRegexParserProgress pins the three common progress formats.
func TestRegexParserProgress(t *testing.T) {
	parser := NewDefaultRegexParser()

	tests := []struct {
		name   string
		output string
		want   float64
	}{
		{"current over total", "Processing 45/100 files...", 0.45},
		{"plain percentage", "Progress: 45%", 0.45},
		{"progress bar", "[=====>   ] 45%", 0.45},
		{"no progress", "compiling module foo", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(tt.output)
			if !almostEqual(got.Progress, tt.want) {
				t.Errorf("Parse(%q).Progress = %v, want %v", tt.output, got.Progress, tt.want)
			}
		})
	}
}

// TestRegexParserZeroTotal verifies a zero total is not a match and the next
// pattern is tried instead.
func TestRegexParserZeroTotal(t *testing.T) {
	parser := NewDefaultRegexParser()

	got := parser.Parse("processed 0/0 items, 30% done")
	if !almostEqual(got.Progress, 0.30) {
		t.Errorf("Progress = %v, want 0.30 (fell through to percentage pattern)", got.Progress)
	}
}

func TestRegexParserProgressOrder(t *testing.T) {
	parser := NewDefaultRegexParser()

	// Both the N/M and the percentage pattern match; declaration order wins.
	got := parser.Parse("step 3/4 (80%)")
	if !almostEqual(got.Progress, 0.75) {
		t.Errorf("Progress = %v, want 0.75 from first-declared pattern", got.Progress)
	}
}

func TestRegexParserErrors(t *testing.T) {
	parser := NewDefaultRegexParser()

	got := parser.Parse("Processing...\nError: file not found\nContinuing...")
	if len(got.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one entry", got.Errors)
	}
	if got.Errors[0] != "Error: file not found" {
		t.Errorf("Errors[0] = %q, want the matching line verbatim", got.Errors[0])
	}
}

func TestRegexParserCustomMetrics(t *testing.T) {
	patterns := DefaultPatterns()
	patterns.Metrics = append(patterns.Metrics,
		MetricPattern{
			Name:       "loss",
			Regex:      regexp.MustCompile(`Loss:\s*([\d.]+)`),
			ValueGroup: 1,
			ValueKind:  KindFloat,
		},
		MetricPattern{
			Name:       "workers",
			Regex:      regexp.MustCompile(`workers=(\d+)`),
			ValueGroup: 1,
			ValueKind:  KindInt,
		},
	)
	parser := NewRegexParser("custom", patterns)

	got := parser.Parse("Epoch 10/100 | Loss: 0.234 | workers=8")
	if !almostEqual(got.Progress, 0.10) {
		t.Errorf("Progress = %v, want 0.10", got.Progress)
	}
	loss, ok := got.Metrics["loss"].AsFloat()
	if !ok || !almostEqual(loss, 0.234) {
		t.Errorf("loss = %v (ok=%v), want 0.234", loss, ok)
	}
	workers, ok := got.Metrics["workers"].AsInt()
	if !ok || workers != 8 {
		t.Errorf("workers = %v (ok=%v), want 8", workers, ok)
	}
}

func TestRegexParserMetricCollision(t *testing.T) {
	patterns := ParserPatterns{
		Metrics: []MetricPattern{
			{Name: "v", Regex: regexp.MustCompile(`first=(\d+)`), ValueGroup: 1, ValueKind: KindInt},
			{Name: "v", Regex: regexp.MustCompile(`second=(\d+)`), ValueGroup: 1, ValueKind: KindInt},
		},
	}
	parser := NewRegexParser("collide", patterns)

	got := parser.Parse("first=1 second=2")
	v, _ := got.Metrics["v"].AsInt()
	if v != 2 {
		t.Errorf("v = %d, want 2 (later pattern wins on name collision)", v)
	}
}

func TestRegexParserPhase(t *testing.T) {
	parser := NewDefaultRegexParser()

	got := parser.Parse("Phase: Indexing")
	if got.Phase != "Indexing" {
		t.Errorf("Phase = %q, want %q", got.Phase, "Indexing")
	}
}

func TestRegexParserCanParse(t *testing.T) {
	parser := NewDefaultRegexParser()

	if !parser.CanParse("progress 10/20") {
		t.Error("CanParse should accept output with extractable progress")
	}
	if parser.CanParse("nothing interesting here") {
		t.Error("CanParse should reject output with no recognizable patterns")
	}
}
