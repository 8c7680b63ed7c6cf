package agent

import "strings"

// TaskSpec is an agent-backed task definition from the graph file: instead
// of a shell command, the task names an agent and a prompt.
type TaskSpec struct {
	Agent       Type
	Prompt      string
	Args        []string
	AutoApprove bool
}

// BuildCommand constructs the argv for launching the agent with the task's
// prompt. For generic agents, Args must carry the binary name.
func BuildCommand(spec TaskSpec) []string {
	var cmd []string
	switch spec.Agent {
	case TypeClaude:
		cmd = []string{"claude"}
		if spec.AutoApprove {
			cmd = append(cmd, "--auto-approve")
		}
	case TypeCodex:
		cmd = []string{"codex"}
	case TypeOpenCode:
		cmd = []string{"opencode"}
	case TypePi:
		cmd = []string{"pi"}
	}
	cmd = append(cmd, spec.Args...)
	cmd = append(cmd, spec.Prompt)
	return cmd
}

// BuildCommandString renders the argv as a single shell command line,
// quoting arguments that contain spaces.
func BuildCommandString(spec TaskSpec) string {
	parts := BuildCommand(spec)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if strings.ContainsAny(p, " \t") {
			quoted[i] = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
		} else {
			quoted[i] = p
		}
	}
	return strings.Join(quoted, " ")
}
