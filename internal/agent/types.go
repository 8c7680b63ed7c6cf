package agent

import "strings"

// Type identifies a known coding-agent CLI.
type Type int

const (
	TypeGeneric Type = iota
	TypeClaude
	TypeCodex
	TypeOpenCode
	TypePi
)

// ParseType maps a config/graph string to an agent type.
func ParseType(s string) Type {
	switch strings.ToLower(s) {
	case "claude", "claude-code", "claudecode":
		return TypeClaude
	case "codex":
		return TypeCodex
	case "opencode", "open-code":
		return TypeOpenCode
	case "pi":
		return TypePi
	default:
		return TypeGeneric
	}
}

// ProcessPatterns returns the command substrings used for process detection.
func (t Type) ProcessPatterns() []string {
	switch t {
	case TypeClaude:
		return []string{"claude", "claude-code"}
	case TypeCodex:
		return []string{"codex"}
	case TypeOpenCode:
		return []string{"opencode"}
	case TypePi:
		return []string{"pi"}
	}
	return nil
}

func (t Type) String() string {
	switch t {
	case TypeClaude:
		return "Claude Code"
	case TypeCodex:
		return "Codex"
	case TypeOpenCode:
		return "OpenCode"
	case TypePi:
		return "Pi"
	}
	return "Agent"
}

// detectableTypes are the types the process scanner looks for.
var detectableTypes = []Type{TypeClaude, TypeCodex, TypeOpenCode, TypePi}

// RuntimeStatus is the coarse lifecycle classification inferred from output.
// It is derived, never authoritative: the scheduler's task status is the
// source of truth, this only reflects what the process appears to be doing.
type RuntimeStatus int

const (
	StatusNotRunning RuntimeStatus = iota
	StatusRunning
	StatusThinking
	StatusWaitingInput
	StatusCompleted
	StatusError
)

func (s RuntimeStatus) String() string {
	switch s {
	case StatusNotRunning:
		return "not running"
	case StatusRunning:
		return "running"
	case StatusThinking:
		return "thinking"
	case StatusWaitingInput:
		return "waiting for input"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	}
	return "unknown"
}
