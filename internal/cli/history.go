package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teakit/teakit/internal/config"
	"github.com/teakit/teakit/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs",
	RunE:  listRuns,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one archived run in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var historyDB string

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.PersistentFlags().StringVar(&historyDB, "db", "", "History database path (default: from config)")
}

// openHistory opens the history store at the flag or config path.
func openHistory(cmd *cobra.Command) (*history.SQLiteStore, error) {
	path := historyDB
	if path == "" {
		cfg, err := config.LoadDefault()
		if err != nil {
			return nil, err
		}
		path = cfg.HistoryPath
	}
	return history.NewSQLiteStore(cmd.Context(), path)
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPIPELINE\tSTARTED\tTASKS\tRESULT")
	for _, s := range summaries {
		result := "ok"
		if !s.OK() {
			result = fmt.Sprintf("%d failed, %d skipped", s.Failed, s.Skipped)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Pipeline, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Total, result)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("Pipeline: %s\n", run.Pipeline)
	fmt.Printf("Workers:  %d\n", run.Workers)
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n\n", run.FinishedAt.Sub(run.StartedAt).Round(10*time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tPROGRESS\tDETAIL")
	for _, task := range run.Tasks {
		detail := task.Output
		if task.Error != "" {
			detail = task.Error
		}
		name := task.Key
		if task.Label != "" && task.Label != task.Key {
			name = fmt.Sprintf("%s: %s", task.Key, task.Label)
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\n", name, task.Status, task.Progress*100, detail)
	}
	return w.Flush()
}
