package graph

import (
	"errors"
	"strings"
	"testing"
)

func mustGraph(t *testing.T, tasks map[string]*Task) *Graph {
	t.Helper()
	g, err := New(nil, nil, tasks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

// TestGraphValidation covers dependency resolution and cycle detection.
func TestGraphValidation(t *testing.T) {
	tests := []struct {
		name        string
		tasks       map[string]*Task
		wantErr     bool
		wantCycle   bool
		errContains string
	}{
		{
			name: "valid linear chain",
			tasks: map[string]*Task{
				"a": {ID: "a"},
				"b": {ID: "b", DependsOn: []string{"a"}},
				"c": {ID: "c", DependsOn: []string{"b"}},
			},
		},
		{
			name: "valid diamond",
			tasks: map[string]*Task{
				"a": {ID: "a"},
				"b": {ID: "b", DependsOn: []string{"a"}},
				"c": {ID: "c", DependsOn: []string{"a"}},
				"d": {ID: "d", DependsOn: []string{"b", "c"}},
			},
		},
		{
			name: "unknown dependency",
			tasks: map[string]*Task{
				"a": {ID: "a", DependsOn: []string{"ghost"}},
			},
			wantErr:     true,
			errContains: "non-existent",
		},
		{
			name: "direct cycle",
			tasks: map[string]*Task{
				"a": {ID: "a", DependsOn: []string{"b"}},
				"b": {ID: "b", DependsOn: []string{"a"}},
			},
			wantErr:   true,
			wantCycle: true,
		},
		{
			name: "transitive cycle",
			tasks: map[string]*Task{
				"a": {ID: "a", DependsOn: []string{"c"}},
				"b": {ID: "b", DependsOn: []string{"a"}},
				"c": {ID: "c", DependsOn: []string{"b"}},
			},
			wantErr:   true,
			wantCycle: true,
		},
		{
			name: "self loop",
			tasks: map[string]*Task{
				"a": {ID: "a", DependsOn: []string{"a"}},
			},
			wantErr:   true,
			wantCycle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, nil, tt.tasks)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantCycle {
				var cycleErr *CycleError
				if !errors.As(err, &cycleErr) {
					t.Errorf("error %v is not a CycleError", err)
				}
			}
			if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err, tt.errContains)
			}
		})
	}
}

func TestGraphDependentsIndex(t *testing.T) {
	g := mustGraph(t, map[string]*Task{
		"a": {ID: "a"},
		"b": {ID: "b", DependsOn: []string{"a"}},
		"c": {ID: "c", DependsOn: []string{"a"}},
		"d": {ID: "d", DependsOn: []string{"c"}},
	})

	deps := g.Dependents("a")
	if len(deps) != 2 || deps[0] != "b" || deps[1] != "c" {
		t.Errorf("Dependents(a) = %v, want [b c]", deps)
	}
	if deps := g.Dependents("d"); len(deps) != 0 {
		t.Errorf("Dependents(d) = %v, want empty", deps)
	}
}

func TestGraphSortedIDs(t *testing.T) {
	g := mustGraph(t, map[string]*Task{
		"zeta": {ID: "zeta"},
		"alpha": {ID: "alpha"},
		"mid":  {ID: "mid"},
	})

	ids := g.SortedIDs()
	want := []string{"alpha", "mid", "zeta"}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("SortedIDs = %v, want %v", ids, want)
		}
	}
}

func TestGraphCounts(t *testing.T) {
	g := mustGraph(t, map[string]*Task{
		"a": {ID: "a", Status: StatusDone},
		"b": {ID: "b", Status: StatusFailed},
		"c": {ID: "c"},
	})

	c := g.Counts()
	if c.Total != 3 || c.Done != 1 || c.Failed != 1 || c.Pending != 1 {
		t.Errorf("Counts = %+v", c)
	}
}

func TestStatusParsing(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"", StatusPending, false},
		{"pending", StatusPending, false},
		{"in-progress", StatusRunning, false},
		{"done", StatusDone, false},
		{"failed", StatusFailed, false},
		{"skipped", StatusSkipped, false},
		{"bogus", StatusPending, true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
