package semantic

import (
	"regexp"
	"strconv"
)

// ProgressPattern extracts a completion fraction from output.
// A pattern with only a current group is treated as an already-scaled
// percentage; a pattern with both groups computes current/total.
type ProgressPattern struct {
	Regex        *regexp.Regexp
	CurrentGroup int
	TotalGroup   int // 0 means no total group
}

// MetricKind tags the value type a MetricPattern produces.
type MetricPattern struct {
	Name       string
	Regex      *regexp.Regexp
	ValueGroup int
	ValueKind  MetricKind
}

// ParserPatterns configures a RegexParser.
type ParserPatterns struct {
	Progress []ProgressPattern
	Metrics  []MetricPattern
	Phase    *regexp.Regexp // optional, phase label in group 1
	Errors   []*regexp.Regexp
}

// DefaultPatterns returns patterns covering common progress formats
// ("45/100", "45%", "[====>  ] 45%") and generic error lines.
func DefaultPatterns() ParserPatterns {
	return ParserPatterns{
		Progress: []ProgressPattern{
			{Regex: regexp.MustCompile(`(\d+)/(\d+)`), CurrentGroup: 1, TotalGroup: 2},
			{Regex: regexp.MustCompile(`(\d+)%`), CurrentGroup: 1},
			{Regex: regexp.MustCompile(`\[=+>\s+\]\s*(\d+)%`), CurrentGroup: 1},
		},
		Phase: regexp.MustCompile(`(?:Phase|Stage):\s*(\w+)`),
		Errors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)error:`),
			regexp.MustCompile(`(?i)failed`),
			regexp.MustCompile(`(?i)exception`),
		},
	}
}

// RegexParser is a configurable pattern-driven output parser.
type RegexParser struct {
	name     string
	patterns ParserPatterns
}

// NewRegexParser creates a parser with the given name and patterns.
func NewRegexParser(name string, patterns ParserPatterns) *RegexParser {
	return &RegexParser{name: name, patterns: patterns}
}

// NewDefaultRegexParser creates a parser with DefaultPatterns.
func NewDefaultRegexParser() *RegexParser {
	return NewRegexParser("regex", DefaultPatterns())
}

func (p *RegexParser) Name() string { return p.name }

func (p *RegexParser) Parse(output string) *TaskMetrics {
	result := NewTaskMetrics()
	if progress, ok := p.extractProgress(output); ok {
		result.Progress = progress
	}
	p.extractMetrics(output, result.Metrics)
	result.Phase = p.extractPhase(output)
	result.Errors = p.extractErrors(output)
	return result
}

func (p *RegexParser) CanParse(output string) bool {
	if _, ok := p.extractProgress(output); ok {
		return true
	}
	metrics := make(map[string]MetricValue)
	p.extractMetrics(output, metrics)
	return len(metrics) > 0 || p.extractPhase(output) != ""
}

func (p *RegexParser) SupportedTypes() []string {
	return []string{"generic", "build", "test", "data_processing"}
}

// extractProgress tries patterns in declaration order and returns the first
// usable match. A zero total never matches; the next pattern is tried.
func (p *RegexParser) extractProgress(output string) (float64, bool) {
	for _, pat := range p.patterns.Progress {
		m := pat.Regex.FindStringSubmatch(output)
		if m == nil || pat.CurrentGroup >= len(m) {
			continue
		}
		current, err := strconv.ParseFloat(m[pat.CurrentGroup], 64)
		if err != nil {
			return 0, false
		}
		if pat.TotalGroup > 0 {
			if pat.TotalGroup >= len(m) {
				continue
			}
			total, err := strconv.ParseFloat(m[pat.TotalGroup], 64)
			if err != nil {
				return 0, false
			}
			if total > 0 {
				return current / total, true
			}
			continue
		}
		return current / 100, true
	}
	return 0, false
}

// extractMetrics applies every metric pattern independently; on name
// collision the later pattern wins.
func (p *RegexParser) extractMetrics(output string, into map[string]MetricValue) {
	for _, pat := range p.patterns.Metrics {
		m := pat.Regex.FindStringSubmatch(output)
		if m == nil || pat.ValueGroup >= len(m) {
			continue
		}
		raw := m[pat.ValueGroup]
		switch pat.ValueKind {
		case KindFloat:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				into[pat.Name] = Float(v)
			}
		case KindInt:
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				into[pat.Name] = Int(v)
			}
		case KindString:
			into[pat.Name] = String(raw)
		}
	}
}

func (p *RegexParser) extractPhase(output string) string {
	if p.patterns.Phase == nil {
		return ""
	}
	m := p.patterns.Phase.FindStringSubmatch(output)
	if m == nil || len(m) < 2 {
		return ""
	}
	return m[1]
}

func (p *RegexParser) extractErrors(output string) []string {
	var errs []string
	for _, re := range p.patterns.Errors {
		for _, line := range splitLines(output) {
			if re.MatchString(line) {
				errs = append(errs, line)
			}
		}
	}
	return errs
}
