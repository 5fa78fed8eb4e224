package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gasl-lang/gasl/adapter"
	"github.com/gasl-lang/gasl/state"
)

const planSystemPrompt = `You are a graph-analysis planner. You answer questions about a graph
by emitting batches of commands in a small declarative language. You never
answer from prior knowledge; every claim must come from command results.`

const verbReference = `Available commands (one per line, results bind with AS <name>):
  DECLARE <name> AS LIST|DICT|COUNTER [WITH_DESCRIPTION "..."]
  FIND nodes|edges|paths WHERE <predicate> [LIMIT n] AS <out>
  COUNT <source> [FIELD f] [UNIQUE] [WHERE <predicate>] [GROUP BY g] AS <out>
  SELECT <source> FIELDS a, b [WHERE <predicate>] AS <out>
  SHOW <name> [LIMIT n]
  INSPECT <name>
  PROCESS <source> WITH "instruction" AS <out>
  CLASSIFY <source> WITH "instruction" AS <out>
  ANALYZE <source> FOR "question" AS <out>
  GENERATE "content_type" FROM <source> WITH "spec" AS <out>
  UPDATE <target> WITH <source> MERGE|REPLACE|APPEND [ON key]
  SET <name> = <literal>
  ADDFIELD <target> FIELD <field> = <literal>
  GRAPHWALK FROM <source> FOLLOW rel1, rel2 [DEPTH n] [DIRECTION out|in|both] AS <out>
  GRAPHCONNECT <a> TO <b> [VIA rel] [MAXLEN n] AS <out>
  SUBGRAPH AROUND <source> RADIUS n [INCLUDE type1, type2] AS <out>
  GRAPHPATTERN FIND fan_out|fan_in|isolated [THRESHOLD n] IN <source> AS <out>
  JOIN <left> WITH <right> ON lkey[= rkey] AS <out>
  MERGE <v1>, <v2> [ON key] AS <out>
  COMPARE <left> WITH <right> ON field AS <out>
  AGGREGATE <source> BY field WITH sum|avg|min|max|count [valuefield] AS <out>
  GROUP <source> BY field AS <out>
  RANK <source> BY field [ORDER asc|desc] [LIMIT n] AS <out>
  CREATE nodes|edges FROM <source> [AS <out>]
  REQUIRE <name> NOT_EMPTY | REQUIRE <name> COUNT <op> <n>
  ASSERT <name> NOT_EMPTY | ASSERT <name> COUNT <op> <n>
  ON success|error|empty DO <command>
  TRY <command> / CATCH <command> / FINALLY <command>
Predicates: field = value, !=, >, >=, <, <=, CONTAINS, STARTS_WITH, IN (a, b), joined with AND/OR.`

// buildPlanPrompt assembles the planning-phase prompt from the query, the
// current state summary and the graph schema.
func buildPlanPrompt(query string, summary string, schema *adapter.Schema, history []state.ExecutionRecord, hint, failureNote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)

	if schema != nil {
		if raw, err := json.Marshal(schema); err == nil {
			fmt.Fprintf(&b, "Graph schema:\n%s\n\n", raw)
		}
	}
	fmt.Fprintf(&b, "Current state:\n%s\n\n", summary)

	if len(history) > 0 {
		tail := history
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		b.WriteString("Recent command results:\n")
		for _, rec := range tail {
			fmt.Fprintf(&b, "  [%s] %s", rec.Status, rec.Command)
			if rec.Error != "" {
				fmt.Fprintf(&b, " (%s)", rec.Error)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if hint != "" {
		fmt.Fprintf(&b, "Guidance from the last evaluation: %s\n\n", hint)
	}
	if failureNote != "" {
		fmt.Fprintf(&b, "Your previous plan was rejected: %s\nFix the problem and reply again.\n\n", failureNote)
	}

	b.WriteString(verbReference)
	b.WriteString(`

Reply with a single JSON object:
{"id": "<short-plan-id>", "why": "<one sentence>", "commands": ["<command>", ...],
 "config": {"stop_on_error": true|false, "continue_on_empty": true|false}}`)
	return b.String()
}

// buildEvalPrompt assembles the evaluation-phase prompt after a plan ran.
func buildEvalPrompt(query, summary string, records []state.ExecutionRecord, failureNote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	fmt.Fprintf(&b, "State after the last plan:\n%s\n\n", summary)

	b.WriteString("Results of the last plan:\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "  [%s] %s (count=%d)", rec.Status, rec.Command, rec.Count)
		if rec.Error != "" {
			fmt.Fprintf(&b, " error=%s", rec.Error)
		}
		if rec.Summary != "" {
			fmt.Fprintf(&b, " %s", rec.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if failureNote != "" {
		fmt.Fprintf(&b, "Your previous reply was rejected: %s\nFix the problem and reply again.\n\n", failureNote)
	}

	b.WriteString(`Decide what to do next:
  continue  - the approach works, plan the next batch
  refine    - same approach, but adjust the commands
  pivot     - the approach is wrong, try a different one
  terminate - the question is answered (or cannot be answered)

Reply with a single JSON object:
{"decision": "continue|refine|pivot|terminate", "reason": "<one sentence>",
 "answer": "<required when terminating>", "hint": "<optional guidance for the next plan>"}`)
	return b.String()
}

// buildForcedAnswerPrompt asks for a best-effort answer when the iteration
// budget runs out before a clean terminate.
func buildForcedAnswerPrompt(query, summary string) string {
	return fmt.Sprintf("Question: %s\n\nFinal state:\n%s\n\n"+
		"The analysis budget is exhausted. Give the best answer supported by the "+
		"state above, noting any gaps. Reply with plain text.", query, summary)
}
