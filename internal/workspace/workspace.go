// Package workspace merges several projects' graph files into one unified
// graph so a single orchestrator run can drive them all. Task ids are
// namespaced as "project:task"; a dependency already containing ':' is
// treated as a cross-project reference and left as written.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gidterm/gidterm/internal/graph"
)

// Project is one loaded member of a workspace.
type Project struct {
	Name string
	Path string
}

// Workspace is the unified view over all member projects.
type Workspace struct {
	Projects []Project
	Graph    *graph.Graph
}

// Load reads every .yaml/.yml graph file directly under dir and merges them.
// The project name is the file's metadata project field, falling back to
// the file name without extension.
func Load(dir string) (*Workspace, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading workspace directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no graph files found in %s", dir)
	}

	ws := &Workspace{}
	merged := make(map[string]*graph.Task)
	seen := make(map[string]string) // project name -> source path

	for _, path := range paths {
		// Dependencies are not validated per file: a cross-project
		// reference only resolves once every member is merged.
		meta, tasks, err := graph.LoadTasks(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}

		name := projectName(meta, path)
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate project name %q in %s and %s", name, prev, path)
		}
		seen[name] = path
		ws.Projects = append(ws.Projects, Project{Name: name, Path: path})

		for _, task := range tasks {
			ns := namespaceTask(name, task)
			merged[ns.ID] = ns
		}
	}

	unified, err := graph.New(nil, nil, merged)
	if err != nil {
		return nil, fmt.Errorf("merging workspace graphs: %w", err)
	}
	ws.Graph = unified
	return ws, nil
}

func projectName(meta *graph.Metadata, path string) string {
	if meta != nil && meta.Project != "" {
		return meta.Project
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// namespaceTask returns a copy of the task with its id and dependency
// references rewritten into the project's namespace.
func namespaceTask(project string, task *graph.Task) *graph.Task {
	ns := *task
	ns.ID = project + ":" + task.ID
	if len(task.DependsOn) > 0 {
		deps := make([]string, len(task.DependsOn))
		for i, dep := range task.DependsOn {
			if strings.Contains(dep, ":") {
				deps[i] = dep
				continue
			}
			deps[i] = project + ":" + dep
		}
		ns.DependsOn = deps
	}
	return &ns
}

// SplitID breaks a namespaced id into project and task parts. Ids without a
// namespace come back with an empty project.
func SplitID(id string) (project, task string) {
	if i := strings.Index(id, ":"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}
