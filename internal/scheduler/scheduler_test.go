package scheduler

import (
	"errors"
	"testing"

	"github.com/gidterm/gidterm/internal/graph"
)

// buildGraph constructs a validated graph from id -> (command, deps) specs.
func buildGraph(t *testing.T, specs map[string]struct {
	Command string
	Deps    []string
}) *graph.Graph {
	t.Helper()
	tasks := make(map[string]*graph.Task, len(specs))
	for id, s := range specs {
		tasks[id] = &graph.Task{
			ID:        id,
			Command:   s.Command,
			DependsOn: s.Deps,
			Status:    graph.StatusPending,
		}
	}
	g, err := graph.New(nil, nil, tasks)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	return g
}

type taskSpec = struct {
	Command string
	Deps    []string
}

func ids(tasks []*graph.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func equalIDs(got []*graph.Task, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestReadyRespectsDependencies(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{
		"build": {Command: "make build"},
		"test":  {Command: "make test", Deps: []string{"build"}},
		"lint":  {Command: "make lint"},
	})
	s := New(g)

	if got := s.Ready(); !equalIDs(got, "build", "lint") {
		t.Fatalf("initial ready = %v, want [build lint]", ids(got))
	}

	if err := s.MarkStarted("build"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDone("build"); err != nil {
		t.Fatal(err)
	}

	if got := s.Ready(); !equalIDs(got, "lint", "test") {
		t.Fatalf("ready after build = %v, want [lint test]", ids(got))
	}
}

func TestReadyLexicographicOrder(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{
		"zeta":  {Command: "z"},
		"alpha": {Command: "a"},
		"mid":   {Command: "m"},
	})
	s := New(g)

	if got := s.Ready(); !equalIDs(got, "alpha", "mid", "zeta") {
		t.Fatalf("ready = %v, want lexicographic [alpha mid zeta]", ids(got))
	}
}

func TestResolveReadyUnblocksThroughPassThrough(t *testing.T) {
	// docs has no command; phase is a commandless milestone over docs.
	// Resolving both should expose deploy in the same pass.
	g := buildGraph(t, map[string]taskSpec{
		"build":  {Command: "make build"},
		"docs":   {Deps: nil},
		"phase":  {Deps: []string{"docs"}},
		"deploy": {Command: "make deploy", Deps: []string{"build", "phase"}},
	})
	s := New(g)

	runnable := s.ResolveReady()
	if !equalIDs(runnable, "build") {
		t.Fatalf("runnable = %v, want [build]", ids(runnable))
	}

	for _, id := range []string{"docs", "phase"} {
		task, _ := s.Task(id)
		if task.Status != graph.StatusDone {
			t.Errorf("task %q status = %s, want done", id, task.Status)
		}
	}

	if err := s.MarkStarted("build"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDone("build"); err != nil {
		t.Fatal(err)
	}
	if runnable := s.ResolveReady(); !equalIDs(runnable, "deploy") {
		t.Fatalf("runnable after build = %v, want [deploy]", ids(runnable))
	}
}

func TestMarkStartedRejectsNonPending(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{"build": {Command: "make"}})
	s := New(g)

	if err := s.MarkStarted("build"); err != nil {
		t.Fatal(err)
	}
	err := s.MarkStarted("build")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second MarkStarted error = %v, want ErrInvalidTransition", err)
	}
	task, _ := s.Task("build")
	if task.Status != graph.StatusRunning {
		t.Fatalf("status after rejected transition = %s, want running", task.Status)
	}
}

func TestMarkDoneRejectsPendingRunnable(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{"build": {Command: "make"}})
	s := New(g)

	if err := s.MarkDone("build"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MarkDone on pending runnable = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkDoneAllowsPendingPassThrough(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{"milestone": {}})
	s := New(g)

	if err := s.MarkDone("milestone"); err != nil {
		t.Fatal(err)
	}
	task, _ := s.Task("milestone")
	if task.Status != graph.StatusDone {
		t.Fatalf("status = %s, want done", task.Status)
	}
}

func TestMarkFailedSkipsTransitiveDependents(t *testing.T) {
	// build -> test -> deploy, with lint independent.
	g := buildGraph(t, map[string]taskSpec{
		"build":  {Command: "make build"},
		"test":   {Command: "make test", Deps: []string{"build"}},
		"deploy": {Command: "make deploy", Deps: []string{"test"}},
		"lint":   {Command: "make lint"},
	})
	s := New(g)

	if err := s.MarkStarted("build"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("build"); err != nil {
		t.Fatal(err)
	}

	want := map[string]graph.Status{
		"build":  graph.StatusFailed,
		"test":   graph.StatusSkipped,
		"deploy": graph.StatusSkipped,
		"lint":   graph.StatusPending,
	}
	for id, status := range want {
		task, _ := s.Task(id)
		if task.Status != status {
			t.Errorf("task %q status = %s, want %s", id, task.Status, status)
		}
	}

	if got := s.Ready(); !equalIDs(got, "lint") {
		t.Fatalf("ready after failure = %v, want [lint]", ids(got))
	}
}

func TestSkippedDependencySatisfiesReadiness(t *testing.T) {
	// legacy enters the run already skipped; report must not wait on it,
	// only on lint.
	g, err := graph.Parse([]byte(`
tasks:
  legacy:
    command: make legacy
    status: skipped
  lint:
    command: make lint
  report:
    command: make report
    depends_on: [legacy, lint]
`))
	if err != nil {
		t.Fatalf("parsing graph: %v", err)
	}
	s := New(g)

	if got := s.Ready(); !equalIDs(got, "lint") {
		t.Fatalf("ready = %v, want [lint]", ids(got))
	}
	if err := s.MarkStarted("lint"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDone("lint"); err != nil {
		t.Fatal(err)
	}

	if got := s.Ready(); !equalIDs(got, "report") {
		t.Fatalf("ready = %v, want [report]", ids(got))
	}
}

func TestPropagationReachesPartiallySatisfiedDependents(t *testing.T) {
	// report depends on both the failed branch's leaf and a healthy task.
	// A transitive dependent of the failure is skipped even when its other
	// dependencies complete fine.
	g := buildGraph(t, map[string]taskSpec{
		"build":  {Command: "make build"},
		"test":   {Command: "make test", Deps: []string{"build"}},
		"lint":   {Command: "make lint"},
		"report": {Command: "make report", Deps: []string{"test", "lint"}},
	})
	s := New(g)

	if err := s.MarkStarted("build"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("build"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkStarted("lint"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDone("lint"); err != nil {
		t.Fatal(err)
	}

	report, _ := s.Task("report")
	if report.Status != graph.StatusSkipped {
		t.Fatalf("report status = %s, want skipped", report.Status)
	}
	if got := s.Ready(); len(got) != 0 {
		t.Fatalf("ready = %v, want none", ids(got))
	}
	if !s.Complete() {
		t.Fatal("run with only terminal tasks not complete")
	}
}

func TestPropagationLeavesRunningDependentsAlone(t *testing.T) {
	// test and bench both depend on shared setup tasks; bench is already
	// running when build fails, so only pending dependents get skipped.
	g := buildGraph(t, map[string]taskSpec{
		"build": {Command: "make build"},
		"bench": {Command: "make bench"},
		"merge": {Command: "make merge", Deps: []string{"build", "bench"}},
	})
	s := New(g)

	if err := s.MarkStarted("build"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkStarted("bench"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("build"); err != nil {
		t.Fatal(err)
	}

	bench, _ := s.Task("bench")
	if bench.Status != graph.StatusRunning {
		t.Fatalf("bench status = %s, want running", bench.Status)
	}
	merge, _ := s.Task("merge")
	if merge.Status != graph.StatusSkipped {
		t.Fatalf("merge status = %s, want skipped", merge.Status)
	}
}

func TestPropagationIsIdempotent(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{
		"a": {Command: "a"},
		"b": {Command: "b"},
		"c": {Command: "c", Deps: []string{"a", "b"}},
	})
	s := New(g)

	for _, id := range []string{"a", "b"} {
		if err := s.MarkStarted(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.MarkFailed("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("b"); err != nil {
		t.Fatal(err)
	}

	c, _ := s.Task("c")
	if c.Status != graph.StatusSkipped {
		t.Fatalf("c status = %s, want skipped", c.Status)
	}
	counts := s.Counts()
	if counts.Failed != 2 || counts.Skipped != 1 {
		t.Fatalf("counts = %+v, want 2 failed, 1 skipped", counts)
	}
}

func TestComplete(t *testing.T) {
	g := buildGraph(t, map[string]taskSpec{
		"a": {Command: "a"},
		"b": {Command: "b", Deps: []string{"a"}},
	})
	s := New(g)

	if s.Complete() {
		t.Fatal("fresh graph reported complete")
	}
	if err := s.MarkStarted("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("a"); err != nil {
		t.Fatal(err)
	}
	if !s.Complete() {
		t.Fatal("graph with only failed/skipped tasks not complete")
	}
}
