package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGraph(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing graph file: %v", err)
	}
}

const apiGraph = `
metadata:
  project: api
tasks:
  build:
    command: make build
  test:
    command: make test
    depends_on: [build]
`

const webGraph = `
metadata:
  project: web
tasks:
  bundle:
    command: npm run build
  deploy:
    command: ./deploy.sh
    depends_on: [bundle, "api:test"]
`

func TestLoadMergesAndNamespaces(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "api.yaml", apiGraph)
	writeGraph(t, dir, "web.yaml", webGraph)

	ws, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(ws.Projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(ws.Projects))
	}
	if ws.Graph.Len() != 4 {
		t.Fatalf("merged graph has %d tasks, want 4", ws.Graph.Len())
	}

	for _, id := range []string{"api:build", "api:test", "web:bundle", "web:deploy"} {
		if _, ok := ws.Graph.Task(id); !ok {
			t.Errorf("merged graph missing task %q", id)
		}
	}

	// Same-project deps are namespaced; explicit cross-project refs pass
	// through untouched.
	deploy, _ := ws.Graph.Task("web:deploy")
	want := map[string]bool{"web:bundle": true, "api:test": true}
	for _, dep := range deploy.DependsOn {
		if !want[dep] {
			t.Errorf("unexpected dependency %q on web:deploy", dep)
		}
		delete(want, dep)
	}
	for dep := range want {
		t.Errorf("web:deploy missing dependency %q", dep)
	}
}

func TestProjectNameFallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "backend.yml", "tasks:\n  build:\n    command: make\n")

	ws, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ws.Projects[0].Name != "backend" {
		t.Errorf("project name = %q, want backend", ws.Projects[0].Name)
	}
	if _, ok := ws.Graph.Task("backend:build"); !ok {
		t.Error("task not namespaced with file-derived project name")
	}
}

func TestDuplicateProjectNamesRejected(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "a.yaml", "metadata:\n  project: same\ntasks:\n  t:\n    command: x\n")
	writeGraph(t, dir, "b.yaml", "metadata:\n  project: same\ntasks:\n  u:\n    command: y\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("duplicate project names did not return an error")
	}
}

func TestCrossProjectUnknownDependencyRejected(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "web.yaml", `
metadata:
  project: web
tasks:
  deploy:
    command: ./deploy.sh
    depends_on: ["api:test"]
`)

	if _, err := Load(dir); err == nil {
		t.Fatal("dangling cross-project dependency did not return an error")
	}
}

func TestEmptyWorkspace(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("empty workspace did not return an error")
	}
}

func TestSplitID(t *testing.T) {
	tests := []struct {
		id      string
		project string
		task    string
	}{
		{"api:test", "api", "test"},
		{"plain", "", "plain"},
		{"a:b:c", "a", "b:c"},
	}
	for _, tt := range tests {
		project, task := SplitID(tt.id)
		if project != tt.project || task != tt.task {
			t.Errorf("SplitID(%q) = %q,%q, want %q,%q", tt.id, project, task, tt.project, tt.task)
		}
	}
}
