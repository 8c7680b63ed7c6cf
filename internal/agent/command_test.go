package agent

import (
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"claude", TypeClaude},
		{"Claude", TypeClaude},
		{"claude-code", TypeClaude},
		{"codex", TypeCodex},
		{"opencode", TypeOpenCode},
		{"pi", TypePi},
		{"something-else", TypeGeneric},
	}

	for _, tt := range tests {
		if got := ParseType(tt.in); got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	spec := TaskSpec{
		Agent:       TypeClaude,
		Prompt:      "Implement feature X",
		AutoApprove: true,
	}

	cmd := BuildCommand(spec)
	if cmd[0] != "claude" {
		t.Errorf("cmd[0] = %q, want claude", cmd[0])
	}
	found := false
	for _, arg := range cmd {
		if arg == "--auto-approve" {
			found = true
		}
	}
	if !found {
		t.Error("expected --auto-approve flag")
	}
	if cmd[len(cmd)-1] != "Implement feature X" {
		t.Errorf("last arg = %q, want the prompt", cmd[len(cmd)-1])
	}
}

func TestBuildCommandGeneric(t *testing.T) {
	spec := TaskSpec{
		Agent:  TypeGeneric,
		Prompt: "do the thing",
		Args:   []string{"mytool", "--flag"},
	}

	cmd := BuildCommand(spec)
	if cmd[0] != "mytool" {
		t.Errorf("cmd[0] = %q, want the first arg as binary for generic agents", cmd[0])
	}
}

func TestBuildCommandString(t *testing.T) {
	spec := TaskSpec{
		Agent:  TypeCodex,
		Prompt: "fix the parser",
	}

	got := BuildCommandString(spec)
	if !strings.HasPrefix(got, "codex ") {
		t.Errorf("command string = %q, want codex prefix", got)
	}
	if !strings.Contains(got, `"fix the parser"`) {
		t.Errorf("command string = %q, want quoted prompt", got)
	}
}
