package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gidterm/gidterm/internal/agent"
	"github.com/gidterm/gidterm/internal/app"
	"github.com/gidterm/gidterm/internal/config"
	"github.com/gidterm/gidterm/internal/events"
	"github.com/gidterm/gidterm/internal/graph"
	"github.com/gidterm/gidterm/internal/session"
	"github.com/gidterm/gidterm/internal/tui"
	"github.com/gidterm/gidterm/internal/workspace"
)

const version = "0.3.0"

var (
	graphFile    string
	workspaceDir string
	headless     bool
	noSession    bool
)

var rootCmd = &cobra.Command{
	Use:   "gidterm",
	Short: "Run developer-automation task graphs with live status inference",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a task graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load a task graph and report errors without running anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph()
		if err != nil {
			return err
		}
		fmt.Printf("OK: %d tasks\n", g.Len())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show gidterm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("gidterm v" + version)
	},
}

func init() {
	rootCmd.AddCommand(runCmd, validateCmd, versionCmd)
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVarP(&graphFile, "graph", "g", "gidterm.yaml", "Task graph YAML file")
		c.Flags().StringVarP(&workspaceDir, "workspace", "w", "", "Workspace directory of graph files (overrides --graph)")
	}
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run without the dashboard, printing a summary at the end")
	runCmd.Flags().BoolVar(&noSession, "no-session", false, "Skip session recording")
}

func loadGraph() (*graph.Graph, error) {
	if workspaceDir != "" {
		ws, err := workspace.Load(workspaceDir)
		if err != nil {
			return nil, err
		}
		return ws.Graph, nil
	}
	return graph.Load(graphFile)
}

func projectName(g *graph.Graph) string {
	if g.Metadata != nil && g.Metadata.Project != "" {
		return g.Metadata.Project
	}
	if workspaceDir != "" {
		return "workspace"
	}
	return graphFile
}

func runGraph(ctx context.Context) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	g, err := loadGraph()
	if err != nil {
		return err
	}

	var rec session.Recorder
	if !noSession {
		store, err := session.New(ctx, cfg.SessionDB, projectName(g))
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		rec = session.NewResilientRecorder(store, session.DefaultRetryConfig())
		defer func() {
			if err := rec.Close(context.Background()); err != nil {
				log.Printf("WARNING: closing session store: %v", err)
			}
		}()
	}

	var bus *events.Bus
	if !headless {
		bus = events.NewBus()
		defer bus.Close()
	}

	a := app.New(g, app.Options{
		Config:   cfg,
		Recorder: rec,
		Bus:      bus,
		Detector: agent.NewDetector(5 * time.Second),
	})

	// Agents started outside gidterm share the terminal and may hold the
	// same working tree; flag them before the run begins.
	for _, p := range a.ExternalAgents() {
		log.Printf("WARNING: %s agent already running outside gidterm (pid %d) %s", p.Type, p.PID, p.Cwd)
	}

	if headless {
		counts, err := a.Run(ctx)
		printSummary(counts)
		if err != nil {
			return err
		}
		if counts.Failed > 0 {
			return fmt.Errorf("%d task(s) failed", counts.Failed)
		}
		return nil
	}
	return runWithDashboard(ctx, a, bus)
}

// runWithDashboard drives the orchestrator and the TUI side by side: the
// dashboard quits when the run finishes, and quitting the dashboard cancels
// the run.
func runWithDashboard(ctx context.Context, a *app.App, bus *events.Bus) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(bus, func() []tui.TaskState {
		views := a.Snapshot()
		states := make([]tui.TaskState, len(views))
		for i, v := range views {
			states[i] = tui.TaskState{
				ID:       v.ID,
				Status:   v.Status,
				Runtime:  v.Runtime.String(),
				Progress: v.Progress,
				Phase:    v.Phase,
				Output:   v.Tail,
			}
		}
		return states
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	type runResult struct {
		counts graph.StatusCounts
		err    error
	}
	runDone := make(chan runResult, 1)
	go func() {
		counts, err := a.Run(runCtx)
		runDone <- runResult{counts, err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		tuiDone <- err
	}()

	var res runResult
	select {
	case res = <-runDone:
		// Leave the final state on screen briefly, then close the TUI.
		time.Sleep(500 * time.Millisecond)
		p.Quit()
		if err := <-tuiDone; err != nil {
			log.Printf("WARNING: dashboard exit: %v", err)
		}
	case err := <-tuiDone:
		// User quit the dashboard; tear the run down.
		if err != nil {
			log.Printf("WARNING: dashboard exit: %v", err)
		}
		cancel()
		res = <-runDone
	}

	printSummary(res.counts)
	if res.err != nil && !errors.Is(res.err, context.Canceled) {
		return res.err
	}
	if res.counts.Failed > 0 {
		return fmt.Errorf("%d task(s) failed", res.counts.Failed)
	}
	return nil
}

func printSummary(c graph.StatusCounts) {
	fmt.Printf("done %d, failed %d, skipped %d (of %d)\n", c.Done, c.Failed, c.Skipped, c.Total)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
