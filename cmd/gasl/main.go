// Command gasl runs LLM-driven graph analysis from the terminal: point it
// at a graph file, ask a question, and it plans, executes and evaluates
// command batches until it has an answer. Runs persist as versioned state
// snapshots, so they can be inspected, resumed and replayed later.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/gasl-lang/gasl/config"
	"github.com/gasl-lang/gasl/engine"
	"github.com/gasl-lang/gasl/log"
	"github.com/gasl-lang/gasl/state"
)

var (
	configPath string
	graphPath  string
	maxIter    int
)

func main() {
	root := &cobra.Command{
		Use:           "gasl",
		Short:         "LLM-driven graph analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&graphPath, "graph", "g", "", "path to a JSON graph file (overrides config)")

	root.AddCommand(newRunCmd(), newResumeCmd(), newReplayCmd(), newStateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <question>",
		Short: "Answer a question about the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if maxIter > 0 {
				cfg.Executor.MaxIterations = maxIter
			}

			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			runID := uuid.NewString()
			st, err := state.NewStateStore(ctx, app.Snapshots, runID, args[0])
			if err != nil {
				return err
			}
			if err := st.SetConfig(ctx, cfg.Map()); err != nil {
				return err
			}

			result, err := runAnalysis(ctx, app, cfg, st, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("run:         %s\n", runID)
			fmt.Printf("termination: %s after %d iteration(s), state v%d\n",
				result.Termination, result.Iterations, result.FinalVersion)
			fmt.Printf("\n%s\n", result.Answer)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxIter, "max-iterations", 0, "override the iteration budget")
	return cmd
}

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <run-id> [question]",
		Short: "Continue a persisted run from its latest snapshot",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := state.ResumeStateStore(ctx, app.Snapshots, args[0])
			if err != nil {
				return err
			}
			doc, err := st.Document()
			if err != nil {
				return err
			}
			query := doc.Query
			if len(args) == 2 {
				query = args[1]
			}
			if query == "" {
				return fmt.Errorf("run %s has no recorded question; pass one", args[0])
			}

			result, err := runAnalysis(ctx, app, cfg, st, query)
			if err != nil {
				return err
			}
			fmt.Printf("termination: %s after %d iteration(s), state v%d\n",
				result.Termination, result.Iterations, result.FinalVersion)
			fmt.Printf("\n%s\n", result.Answer)
			return nil
		},
	}
	return cmd
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Re-execute a run's recorded commands against the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := state.ResumeStateStore(ctx, app.Snapshots, args[0])
			if err != nil {
				return err
			}
			doc, err := st.Document()
			if err != nil {
				return err
			}
			if len(doc.Replay.Commands) == 0 {
				return fmt.Errorf("run %s recorded no commands", args[0])
			}

			// Replay writes into a fresh in-memory state so the original
			// run's snapshots stay untouched.
			replayState, err := state.NewStateStore(ctx, app.FreshMemoryStore(), "replay-"+args[0], doc.Query)
			if err != nil {
				return err
			}
			ex := newExecutor(app, cfg, replayState)
			if err := ex.Replay(ctx, doc.Replay.Commands); err != nil {
				return err
			}
			fmt.Printf("replayed %d command(s) from run %s\n", len(doc.Replay.Commands), args[0])
			return nil
		},
	}
}

func newStateCmd() *cobra.Command {
	var showHistory bool
	cmd := &cobra.Command{
		Use:   "state <run-id>",
		Short: "Inspect a persisted run's variables and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := state.ResumeStateStore(ctx, app.Snapshots, args[0])
			if err != nil {
				return err
			}
			doc, err := st.Document()
			if err != nil {
				return err
			}

			if showHistory {
				for _, rec := range doc.History {
					fmt.Printf("[%s] %s (count=%d)\n", rec.Status, rec.Command, rec.Count)
					if rec.Error != "" {
						fmt.Printf("        %s\n", rec.Error)
					}
				}
				return nil
			}

			out, err := json.MarshalIndent(map[string]any{
				"run_id":    doc.RunID,
				"version":   doc.Version,
				"query":     doc.Query,
				"variables": doc.Variables,
				"steps":     len(doc.History),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showHistory, "history", false, "print the execution history instead of the variables")
	return cmd
}

func runAnalysis(ctx context.Context, app *App, cfg *config.Config, st *state.StateStore, query string) (*engine.RunResult, error) {
	ex := newExecutor(app, cfg, st)
	return ex.Run(ctx, query)
}

func newExecutor(app *App, cfg *config.Config, st *state.StateStore) *engine.Executor {
	env := &engine.Env{
		Context: state.NewContextStore(),
		State:   st,
		Graph:   app.Graph,
		LLM:     app.LLM,
		Log:     app.Log,
		Limits: engine.Limits{
			MaxDepth:          cfg.Limits.MaxDepth,
			MaxTraversalNodes: cfg.Limits.MaxTraversalNodes,
			MaxPathLength:     cfg.Limits.MaxPathLength,
			MaxShowItems:      cfg.Limits.MaxShowItems,
		},
	}
	return engine.NewExecutor(engine.NewDispatcher(env), engine.ExecutorConfig{
		MaxIterations: cfg.Executor.MaxIterations,
		MaxRetries:    cfg.Executor.MaxRetries,
	})
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if graphPath != "" {
		cfg.Graph.Path = graphPath
	}
	return cfg, nil
}

func newLogger(level string) log.Logger {
	gl := golog.New()
	gl.SetLevel(level)
	logger := log.NewGologLogger(gl)
	switch level {
	case "debug":
		logger.SetLevel(log.LogLevelDebug)
	case "warn":
		logger.SetLevel(log.LogLevelWarn)
	case "error":
		logger.SetLevel(log.LogLevelError)
	default:
		logger.SetLevel(log.LogLevelInfo)
	}
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
