package semantic

// OutputParser extracts structured progress and metrics from raw task output.
// Implementations must be safe for concurrent use; Parse never fails — a
// parser that cannot extract anything returns a zero-valued TaskMetrics,
// optionally carrying diagnostic strings in its Errors list.
type OutputParser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Parse extracts metrics from the given output text.
	Parse(output string) *TaskMetrics

	// CanParse reports whether this parser recognizes the output.
	CanParse(output string) bool

	// SupportedTypes returns the task-type tags this parser handles.
	SupportedTypes() []string
}
