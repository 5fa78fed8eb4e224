// GASL - LLM-Driven Graph Analysis in Go
//
// GASL answers natural-language questions about a graph by letting a
// language model iteratively plan small batches of commands in a
// declarative analysis language, executing them against the graph, and
// evaluating the results until it can give an answer.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/gasl-lang/gasl
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		graphmem "github.com/gasl-lang/gasl/adapter/memory"
//		"github.com/gasl-lang/gasl/engine"
//		"github.com/gasl-lang/gasl/llm/openai"
//		"github.com/gasl-lang/gasl/state"
//		storemem "github.com/gasl-lang/gasl/store/memory"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		g, _ := graphmem.LoadGraph("graph.json")
//		model, _ := openai.New() // reads OPENAI_API_KEY
//		st, _ := state.NewStateStore(ctx, storemem.NewMemorySnapshotStore(), "run-1", "")
//
//		env := &engine.Env{
//			Context: state.NewContextStore(),
//			State:   st,
//			Graph:   g,
//			LLM:     model,
//		}
//		ex := engine.NewExecutor(engine.NewDispatcher(env), engine.DefaultExecutorConfig())
//
//		result, _ := ex.Run(ctx, "Which people are connected to more than one company?")
//		fmt.Println(result.Answer)
//	}
//
// # Packages
//
//   - command: the analysis language, its parser and canonical renderer
//   - condition: the WHERE predicate language
//   - engine: verb handlers, dispatcher and the plan/execute/evaluate loop
//   - state: typed variables, copy-on-write versioned run state
//   - store: snapshot persistence (memory, file, sqlite, postgres, redis)
//   - adapter: the graph boundary plus an in-memory implementation
//   - llm: the model boundary (openai, langchaingo backends)
//   - config, log: run configuration and leveled logging
//
// The gasl command under cmd/gasl wraps all of this for the terminal:
// run a question, inspect a run's state, resume it, or replay it.
package gasl
