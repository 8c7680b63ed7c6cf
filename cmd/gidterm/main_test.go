package main

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleGraph = `
metadata:
  project: sample
tasks:
  build:
    command: make build
  test:
    command: make test
    depends_on: [build]
`

func TestLoadGraphFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gidterm.yaml")
	if err := os.WriteFile(path, []byte(sampleGraph), 0644); err != nil {
		t.Fatalf("writing graph file: %v", err)
	}

	graphFile = path
	workspaceDir = ""
	t.Cleanup(func() { graphFile = "gidterm.yaml" })

	g, err := loadGraph()
	if err != nil {
		t.Fatalf("loadGraph: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("loaded %d tasks, want 2", g.Len())
	}
	if projectName(g) != "sample" {
		t.Errorf("project name = %q, want sample", projectName(g))
	}
}

func TestLoadGraphPrefersWorkspace(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api.yaml"), []byte(sampleGraph), 0644); err != nil {
		t.Fatalf("writing graph file: %v", err)
	}

	graphFile = filepath.Join(dir, "does-not-exist.yaml")
	workspaceDir = dir
	t.Cleanup(func() {
		graphFile = "gidterm.yaml"
		workspaceDir = ""
	})

	g, err := loadGraph()
	if err != nil {
		t.Fatalf("loadGraph: %v", err)
	}
	if _, ok := g.Task("sample:build"); !ok {
		t.Error("workspace graph missing namespaced task sample:build")
	}
}
