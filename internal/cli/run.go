package cli

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
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teakit/teakit/internal/config"
	"github.com/teakit/teakit/internal/events"
	"github.com/teakit/teakit/internal/history"
	"github.com/teakit/teakit/internal/pipeline"
	"github.com/teakit/teakit/internal/resilience"
	"github.com/teakit/teakit/internal/scheduler"
	"github.com/teakit/teakit/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline.json>",
	Short: "Run a pipeline",
	Long: `Run every task in a pipeline file. Tasks execute in dependency layers
with a bounded worker pool; a failing task marks its transitive dependents
as skipped but never aborts the rest of the run.

Examples:
  # Run with config defaults
  teakit run build.json

  # Run with 8 workers and no TUI
  teakit run build.json -w 8 --no-tui

  # Retry flaky commands with exponential backoff
  teakit run deploy.json --retry`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

var (
	runWorkers int
	runNoTUI   bool
	runHistory string
	runRetry   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Worker pool size (default: from config)")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "Disable the live progress monitor")
	runCmd.Flags().StringVar(&runHistory, "history", "", "History database path (default: from config)")
	runCmd.Flags().BoolVar(&runRetry, "retry", false, "Retry failing commands with exponential backoff")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	if runWorkers > 0 {
		cfg.Workers = runWorkers
	}
	if runNoTUI {
		cfg.TUI = false
	}
	if runHistory != "" {
		cfg.HistoryPath = runHistory
	}

	p, err := pipeline.Load(ctx, args[0], cfg.Vars)
	if err != nil {
		return err
	}
	if runRetry {
		wrapWithRetries(p)
	}

	graph, err := p.Graph()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	exec := scheduler.NewExecutor(graph, scheduler.WithBus(bus))

	started := time.Now().UTC()
	var results scheduler.Results

	if cfg.TUI {
		results, err = runWithMonitor(ctx, exec, bus, p.Name, graph, cfg.Workers)
	} else {
		results, err = runWithLog(ctx, exec, bus, cfg.Workers)
	}
	if err != nil {
		return err
	}
	finished := time.Now().UTC()

	if err := archiveRun(ctx, cfg, p.Name, graph, results, started, finished); err != nil {
		log.Printf("Failed to archive run: %v", err)
	}

	printSummary(graph, results)
	if !results.OK() {
		return errors.New("run finished with failed or skipped tasks")
	}
	return nil
}

// wrapWithRetries layers retry and circuit-breaker protection over every
// task's action, one breaker per task key.
func wrapWithRetries(p *pipeline.Pipeline) {
	breakers := resilience.NewBreakerRegistry()
	retryCfg := resilience.DefaultRetryConfig()
	for i := range p.Specs {
		name := fmt.Sprintf("%v", p.Specs[i].ID.Key)
		p.Specs[i].Run = resilience.Wrap(p.Specs[i].Run, retryCfg, breakers.Get(name))
	}
}

// runWithMonitor drives the executor behind a Bubble Tea progress monitor.
// The monitor quits itself when the run finishes; quitting it early with q
// leaves the run going and blocks until it completes.
func runWithMonitor(ctx context.Context, exec *scheduler.Executor, bus *events.Bus, name string, graph *scheduler.Graph, workers int) (scheduler.Results, error) {
	tasks := graph.Tasks()
	names := make([]string, len(tasks))
	for i, id := range tasks {
		names[i] = id.String()
	}
	prog := tea.NewProgram(tui.New(bus, name, names))

	var results scheduler.Results
	var execErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, execErr = exec.Execute(ctx, workers)
		bus.Close()
	}()

	if _, err := prog.Run(); err != nil {
		log.Printf("Monitor error: %v", err)
	}
	<-done
	return results, execErr
}

// runWithLog drives the executor while logging lifecycle events to stderr.
func runWithLog(ctx context.Context, exec *scheduler.Executor, bus *events.Bus, workers int) (scheduler.Results, error) {
	sub := bus.SubscribeAll(events.DefaultBufSize)
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for event := range sub {
			logEvent(event)
		}
	}()

	results, err := exec.Execute(ctx, workers)
	bus.Close()
	<-logged
	return results, err
}

func logEvent(event events.Event) {
	switch e := event.(type) {
	case events.TaskStarted:
		log.Printf("started  %s", e.Task)
	case events.TaskFinished:
		if e.Err != "" {
			log.Printf("%-9s%s: %s", e.Status, e.Task, e.Err)
		} else {
			log.Printf("%-9s%s", e.Status, e.Task)
		}
	case events.RunProgress:
		log.Printf("progress %d/%d done (%d failed, %d skipped)", e.Terminal, e.Total, e.Failed, e.Skipped)
	}
}

// archiveRun records the finished run in the history database.
func archiveRun(ctx context.Context, cfg *config.Config, name string, graph *scheduler.Graph, results scheduler.Results, started, finished time.Time) error {
	store, err := history.NewSQLiteStore(ctx, cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := history.RecordResults(graph.Tasks(), results)
	if err != nil {
		return err
	}
	return store.SaveRun(ctx, &history.Run{
		ID:         uuid.NewString(),
		Pipeline:   name,
		Workers:    cfg.Workers,
		StartedAt:  started,
		FinishedAt: finished,
		Tasks:      records,
	})
}

func printSummary(graph *scheduler.Graph, results scheduler.Results) {
	for _, id := range graph.Tasks() {
		res, ok := results.Get(id)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%-9s %s", res.Status, id)
		if res.Err != nil {
			line += ": " + res.Err.Error()
		}
		fmt.Println(line)
	}
}
