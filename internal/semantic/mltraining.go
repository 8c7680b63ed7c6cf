package semantic

import (
	"regexp"
	"strconv"
	"strings"
)

// MLTrainingParser recognizes training-loop output from common ML frameworks:
// epoch counters, loss, accuracy, and learning rate. Values are scanned from
// the end of the text backward so the most recent occurrence wins.
type MLTrainingParser struct {
	epochRegex    *regexp.Regexp
	lossRegex     *regexp.Regexp
	accuracyRegex *regexp.Regexp
	lrRegex       *regexp.Regexp
}

// NewMLTrainingParser creates a training-output parser.
func NewMLTrainingParser() *MLTrainingParser {
	return &MLTrainingParser{
		epochRegex:    regexp.MustCompile(`(?i)epoch\s*(\d+)/(\d+)`),
		lossRegex:     regexp.MustCompile(`(?i)loss:\s*([\d.]+)`),
		accuracyRegex: regexp.MustCompile(`(?i)(?:acc|accuracy):\s*([\d.]+)`),
		lrRegex:       regexp.MustCompile(`(?i)(?:lr|learning.?rate):\s*([\d.e-]+)`),
	}
}

func (p *MLTrainingParser) Name() string { return "ml_training" }

func (p *MLTrainingParser) Parse(output string) *TaskMetrics {
	result := NewTaskMetrics()

	if current, total, ok := p.extractEpoch(output); ok {
		result.Metrics["epoch"] = Int(current)
		result.Metrics["total_epochs"] = Int(total)
		if total > 0 {
			result.Progress = float64(current) / float64(total)
		}
	}
	if loss, ok := p.lastFloat(output, p.lossRegex); ok {
		result.Metrics["loss"] = Float(loss)
	}
	if acc, ok := p.lastFloat(output, p.accuracyRegex); ok {
		result.Metrics["accuracy"] = Float(acc)
	}
	if lr, ok := p.lastFloat(output, p.lrRegex); ok {
		result.Metrics["learning_rate"] = Float(lr)
	}

	result.Phase = detectPhase(output)

	for _, line := range splitLines(output) {
		lower := strings.ToLower(line)
		if strings.Contains(line, "NaN") || strings.Contains(lower, "loss: nan") {
			result.Errors = append(result.Errors, "Loss is NaN - training diverged")
		}
		if strings.Contains(line, "CUDA out of memory") {
			result.Errors = append(result.Errors, "Out of GPU memory")
		}
		if strings.Contains(lower, "error:") {
			result.Errors = append(result.Errors, line)
		}
	}

	return result
}

func (p *MLTrainingParser) CanParse(output string) bool {
	if _, _, ok := p.extractEpoch(output); ok {
		return true
	}
	if _, ok := p.lastFloat(output, p.lossRegex); ok {
		return true
	}
	return strings.Contains(strings.ToLower(output), "epoch")
}

func (p *MLTrainingParser) SupportedTypes() []string {
	return []string{"ml_training", "deep_learning", "training"}
}

// extractEpoch returns the most recent "epoch N/M" occurrence.
func (p *MLTrainingParser) extractEpoch(output string) (current, total int64, ok bool) {
	lines := splitLines(output)
	for i := len(lines) - 1; i >= 0; i-- {
		m := p.epochRegex.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		current, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		total, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return current, total, true
	}
	return 0, 0, false
}

// lastFloat returns the value from the last line matching re.
func (p *MLTrainingParser) lastFloat(output string, re *regexp.Regexp) (float64, bool) {
	lines := splitLines(output)
	for i := len(lines) - 1; i >= 0; i-- {
		m := re.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// detectPhase infers the coarse training phase from keyword presence.
// Validation outranks testing outranks training.
func detectPhase(output string) string {
	switch {
	case strings.Contains(output, "Validating") || strings.Contains(output, "Validation"):
		return "Validation"
	case strings.Contains(output, "Testing") || strings.Contains(output, "Test"):
		return "Testing"
	case strings.Contains(output, "Training") || strings.Contains(output, "Epoch"):
		return "Training"
	}
	return ""
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}
