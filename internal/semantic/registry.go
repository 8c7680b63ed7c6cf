package semantic

// ParserRegistry owns a set of output parsers and routes parse requests by
// task type, falling back to auto-detection in registration order.
type ParserRegistry struct {
	parsers      map[string]OutputParser
	order        []string          // registration order for deterministic fallback
	typeMappings map[string]string // task type -> parser name, last registration wins
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		parsers:      make(map[string]OutputParser),
		typeMappings: make(map[string]string),
	}
}

// NewDefaultRegistry creates a registry with the built-in parsers registered.
func NewDefaultRegistry() *ParserRegistry {
	r := NewParserRegistry()
	r.Register(NewDefaultRegexParser())
	r.Register(NewMLTrainingParser())
	return r
}

// Register adds a parser and maps all its supported types to it.
func (r *ParserRegistry) Register(p OutputParser) {
	name := p.Name()
	if _, exists := r.parsers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.parsers[name] = p
	for _, taskType := range p.SupportedTypes() {
		r.typeMappings[taskType] = name
	}
}

// Get returns a parser by name.
func (r *ParserRegistry) Get(name string) (OutputParser, bool) {
	p, ok := r.parsers[name]
	return p, ok
}

// GetForType returns the parser mapped to the given task type.
func (r *ParserRegistry) GetForType(taskType string) (OutputParser, bool) {
	name, ok := r.typeMappings[taskType]
	if !ok {
		return nil, false
	}
	return r.Get(name)
}

// FindParser returns the first registered parser that recognizes the output.
func (r *ParserRegistry) FindParser(output string) (OutputParser, bool) {
	for _, name := range r.order {
		if p := r.parsers[name]; p.CanParse(output) {
			return p, true
		}
	}
	return nil, false
}

// Parse routes output to the appropriate parser: the task-type mapping
// first, then CanParse auto-detection, then a zero-progress result carrying
// a diagnostic. Never fails.
func (r *ParserRegistry) Parse(taskType, output string) *TaskMetrics {
	if taskType != "" {
		if p, ok := r.GetForType(taskType); ok {
			return p.Parse(output)
		}
	}
	if p, ok := r.FindParser(output); ok {
		return p.Parse(output)
	}
	result := NewTaskMetrics()
	result.Errors = append(result.Errors, "no suitable parser found")
	return result
}

// Parsers lists registered parser names in registration order.
func (r *ParserRegistry) Parsers() []string {
	return append([]string(nil), r.order...)
}
