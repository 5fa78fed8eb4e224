package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasl-lang/gasl/adapter"
	graphmem "github.com/gasl-lang/gasl/adapter/memory"
	"github.com/gasl-lang/gasl/command"
	"github.com/gasl-lang/gasl/llm"
	"github.com/gasl-lang/gasl/state"
	storemem "github.com/gasl-lang/gasl/store/memory"
)

// scriptedLLM replays canned replies in order, failing the test if asked
// for more than it holds.
type scriptedLLM struct {
	t       *testing.T
	replies []string
	next    int
	prompts []string
}

func (s *scriptedLLM) Generate(_ context.Context, _, prompt string) (string, error) {
	if s.next >= len(s.replies) {
		s.t.Fatalf("scripted llm exhausted after %d replies; prompt: %s", len(s.replies), prompt)
	}
	s.prompts = append(s.prompts, prompt)
	reply := s.replies[s.next]
	s.next++
	return reply, nil
}

func (s *scriptedLLM) GenerateStructured(ctx context.Context, system, prompt string, out any) error {
	reply, err := s.Generate(ctx, system, prompt)
	if err != nil {
		return err
	}
	return llm.DecodeStructured(reply, out)
}

func testGraph(t *testing.T) *graphmem.MemoryGraph {
	t.Helper()
	g := graphmem.NewMemoryGraph()
	ctx := context.Background()
	nodes := []adapter.Node{
		{"id": "p1", "type": "PERSON", "name": "Ada", "score": 9.0},
		{"id": "p2", "type": "PERSON", "name": "Grace", "score": 7.0},
		{"id": "p3", "type": "PERSON", "name": "Alan", "score": 8.0},
		{"id": "c1", "type": "COMPANY", "name": "Acme"},
		{"id": "c2", "type": "COMPANY", "name": "Globex"},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(ctx, n))
	}
	edges := []adapter.Edge{
		{Source: "p1", Target: "c1", Attributes: map[string]any{"type": "works_at"}},
		{Source: "p2", Target: "c1", Attributes: map[string]any{"type": "works_at"}},
		{Source: "p3", Target: "c2", Attributes: map[string]any{"type": "works_at"}},
		{Source: "p1", Target: "p2", Attributes: map[string]any{"type": "knows"}},
		{Source: "p1", Target: "p3", Attributes: map[string]any{"type": "knows"}},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(ctx, e))
	}
	return g
}

func testEnv(t *testing.T, model llm.Client) (*Env, *Dispatcher) {
	t.Helper()
	ctx := context.Background()
	st, err := state.NewStateStore(ctx, storemem.NewMemorySnapshotStore(), "run-1", "")
	require.NoError(t, err)
	env := &Env{
		Context: state.NewContextStore(),
		State:   st,
		Graph:   testGraph(t),
		LLM:     model,
	}
	return env, NewDispatcher(env)
}

func dispatch(t *testing.T, d *Dispatcher, raw string) ExecutionResult {
	t.Helper()
	cmd, err := command.Parse(raw)
	require.NoError(t, err, raw)
	return d.Dispatch(context.Background(), cmd)
}

func TestDispatch_FindBindsOutput(t *testing.T) {
	_, d := testEnv(t, nil)

	res := dispatch(t, d, `FIND nodes WHERE type = "PERSON" AS people`)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Count)

	v, err := d.Env().Context.Get("people")
	require.NoError(t, err)
	assert.Equal(t, state.TypeList, v.Type)
	assert.Equal(t, 3, v.Len())
}

func TestDispatch_FindEmptyIsNotAnError(t *testing.T) {
	_, d := testEnv(t, nil)

	res := dispatch(t, d, `FIND nodes WHERE type = "PLANET" AS planets`)
	assert.Equal(t, StatusEmpty, res.Status)
	assert.False(t, res.Status.Failed())

	// Empty results still bind, so later steps can reference them.
	v, err := d.Env().Context.Get("planets")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Len())
}

func TestDispatch_UnknownVariableIsBindingFailure(t *testing.T) {
	_, d := testEnv(t, nil)

	res := dispatch(t, d, `COUNT nothing AS n`)
	assert.Equal(t, StatusBindingFailure, res.Status)
	var be *BindingError
	assert.ErrorAs(t, res.Err, &be)
	assert.False(t, d.Env().Context.Has("n"))
}

func TestDispatch_DeclareFindUpdateMerge(t *testing.T) {
	env, d := testEnv(t, nil)

	assert.Equal(t, StatusSuccess, dispatch(t, d, `DECLARE suspects AS LIST WITH_DESCRIPTION "flagged people"`).Status)
	assert.Equal(t, StatusSuccess, dispatch(t, d, `FIND nodes WHERE type = "PERSON" AND score >= 8 AS high`).Status)

	res := dispatch(t, d, `UPDATE suspects WITH high MERGE ON id`)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Count)

	// Merging the same items again does not grow the list.
	res = dispatch(t, d, `UPDATE suspects WITH high MERGE ON id`)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Count)

	v, err := env.State.Get("suspects")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
}

func TestDispatch_CountGroupBy(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE type = "PERSON" OR type = "COMPANY" AS all`)
	res := dispatch(t, d, `COUNT all GROUP BY type AS by_type`)
	assert.Equal(t, StatusSuccess, res.Status)

	groups, ok := res.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), groups["PERSON"])
	assert.Equal(t, float64(2), groups["COMPANY"])
}

func TestDispatch_JoinFansOut(t *testing.T) {
	env, d := testEnv(t, nil)

	env.Context.Bind(state.NewList("authors", []any{
		map[string]any{"id": float64(1), "name": "A"},
	}))
	env.Context.Bind(state.NewList("posts", []any{
		map[string]any{"author_id": float64(1), "title": "x"},
		map[string]any{"author_id": float64(1), "title": "y"},
	}))

	res := dispatch(t, d, `JOIN authors WITH posts ON id = author_id AS joined`)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Count)

	rows := res.Value.([]any)
	for _, row := range rows {
		m := row.(map[string]any)
		assert.Equal(t, "A", m["name"])
		// Left side wins on collisions.
		assert.Equal(t, float64(1), m["id"])
	}
}

func TestDispatch_MergeDedupes(t *testing.T) {
	env, d := testEnv(t, nil)

	env.Context.Bind(state.NewList("a", []any{
		map[string]any{"id": "1"}, map[string]any{"id": "2"},
	}))
	env.Context.Bind(state.NewList("b", []any{
		map[string]any{"id": "2"}, map[string]any{"id": "3"},
	}))

	res := dispatch(t, d, `MERGE a, b ON id AS merged`)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Count)
}

func TestDispatch_CompareFields(t *testing.T) {
	env, d := testEnv(t, nil)

	env.Context.Bind(state.NewList("old", []any{
		map[string]any{"name": "a"}, map[string]any{"name": "b"},
	}))
	env.Context.Bind(state.NewList("new", []any{
		map[string]any{"name": "b"}, map[string]any{"name": "c"},
	}))

	res := dispatch(t, d, `COMPARE old WITH new ON name AS diff`)
	assert.Equal(t, StatusSuccess, res.Status)

	where := make(map[string]string)
	for _, row := range res.Value.([]any) {
		m := row.(map[string]any)
		where[m["value"].(string)] = m["where"].(string)
	}
	assert.Equal(t, "only_left", where["a"])
	assert.Equal(t, "in_both", where["b"])
	assert.Equal(t, "only_right", where["c"])
}

func TestDispatch_AggregateAndRank(t *testing.T) {
	env, d := testEnv(t, nil)

	env.Context.Bind(state.NewList("sales", []any{
		map[string]any{"region": "east", "amount": 10.0},
		map[string]any{"region": "east", "amount": 30.0},
		map[string]any{"region": "west", "amount": 5.0},
	}))

	res := dispatch(t, d, `AGGREGATE sales BY region WITH sum amount AS totals`)
	require.Equal(t, StatusSuccess, res.Status)
	totals := res.Value.(map[string]any)
	assert.Equal(t, 40.0, totals["east"])
	assert.Equal(t, 5.0, totals["west"])

	res = dispatch(t, d, `AGGREGATE sales BY region WITH avg amount AS avgs`)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 20.0, res.Value.(map[string]any)["east"])

	res = dispatch(t, d, `AGGREGATE sales BY region WITH count AS counts`)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2.0, res.Value.(map[string]any)["east"])
	assert.Equal(t, 1.0, res.Value.(map[string]any)["west"])

	res = dispatch(t, d, `RANK sales BY amount ORDER desc LIMIT 2 AS top`)
	require.Equal(t, StatusSuccess, res.Status)
	ranked := res.Value.([]any)
	require.Len(t, ranked, 2)
	first := ranked[0].(map[string]any)
	assert.Equal(t, 30.0, first["amount"])
	assert.Equal(t, float64(1), first["rank"])
}

func TestDispatch_GroupBuckets(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE type = "PERSON" AS people`)
	res := dispatch(t, d, `GROUP people BY type AS grouped`)
	require.Equal(t, StatusSuccess, res.Status)

	groups := res.Value.(map[string]any)
	assert.Len(t, groups["PERSON"].([]any), 3)
}

func TestDispatch_GraphWalkFollowsRelations(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE id = "p1" AS start`)
	res := dispatch(t, d, `GRAPHWALK FROM start FOLLOW knows DEPTH 1 AS peers`)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Count)

	for _, item := range res.Value.([]any) {
		m := item.(map[string]any)
		assert.Equal(t, "PERSON", m["type"])
		assert.Equal(t, float64(1), m["depth"])
	}
}

func TestDispatch_GraphConnectFindsPath(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE id = "p2" AS from`)
	dispatch(t, d, `FIND nodes WHERE type = "COMPANY" AS companies`)
	res := dispatch(t, d, `GRAPHCONNECT from TO companies MAXLEN 2 AS paths`)
	require.Equal(t, StatusSuccess, res.Status)
	require.GreaterOrEqual(t, res.Count, 1)

	path := res.Value.([]any)[0].(map[string]any)
	assert.Equal(t, []string{"p2", "c1"}, path["nodes"])
	assert.Equal(t, float64(1), path["length"])
}

func TestDispatch_SubgraphHonorsInclude(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE id = "p1" AS center`)
	res := dispatch(t, d, `SUBGRAPH AROUND center RADIUS 1 INCLUDE COMPANY AS hood`)
	require.Equal(t, StatusSuccess, res.Status)

	for _, item := range res.Value.([]any) {
		assert.Equal(t, "COMPANY", item.(map[string]any)["type"])
	}
}

func TestDispatch_GraphPatternFanOut(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE type = "PERSON" AS people`)
	res := dispatch(t, d, `GRAPHPATTERN FIND fan_out THRESHOLD 3 IN people AS hubs`)
	require.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 1, res.Count)

	hub := res.Value.([]any)[0].(map[string]any)
	assert.Equal(t, "p1", hub["id"])
	assert.Equal(t, float64(3), hub["out_degree"])
}

func TestDispatch_CreateNodesAndEdges(t *testing.T) {
	env, d := testEnv(t, nil)
	ctx := context.Background()

	env.Context.Bind(state.NewList("new_nodes", []any{
		map[string]any{"id": "p4", "type": "PERSON", "name": "Edsger"},
	}))
	res := dispatch(t, d, `CREATE nodes FROM new_nodes AS created`)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Count)

	node, err := env.Graph.GetNode(ctx, "p4")
	require.NoError(t, err)
	assert.Equal(t, "Edsger", node["name"])

	env.Context.Bind(state.NewList("new_edges", []any{
		map[string]any{"source": "p4", "target": "c2", "type": "works_at"},
	}))
	res = dispatch(t, d, `CREATE edges FROM new_edges`)
	require.Equal(t, StatusSuccess, res.Status)

	neighbors, err := env.Graph.Neighbors(ctx, "p4", "out")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "c2", neighbors[0].ID())
}

func TestDispatch_RequireAndAssert(t *testing.T) {
	env, d := testEnv(t, nil)

	env.Context.Bind(state.NewList("some", []any{map[string]any{"id": "1"}}))
	env.Context.Bind(state.NewList("none", []any{}))

	assert.Equal(t, StatusSuccess, dispatch(t, d, `REQUIRE some NOT_EMPTY`).Status)
	assert.Equal(t, StatusError, dispatch(t, d, `REQUIRE none NOT_EMPTY`).Status)
	assert.Equal(t, StatusSuccess, dispatch(t, d, `ASSERT some COUNT = 1`).Status)

	res := dispatch(t, d, `ASSERT some COUNT > 5`)
	assert.Equal(t, StatusError, res.Status)
	assert.ErrorContains(t, res.Err, "ASSERT check failed")
}

func TestDispatch_ProcessSchemaMismatch(t *testing.T) {
	env, d := testEnv(t, &scriptedLLM{t: t, replies: []string{
		`["only one element"]`,
	}})

	env.Context.Bind(state.NewList("two", []any{
		map[string]any{"id": "1"}, map[string]any{"id": "2"},
	}))
	res := dispatch(t, d, `PROCESS two WITH "summarize" AS out`)
	assert.Equal(t, StatusSchemaMismatch, res.Status)
	var mismatch *llm.SchemaMismatchError
	assert.ErrorAs(t, res.Err, &mismatch)
	assert.False(t, d.Env().Context.Has("out"))
}

func TestDispatch_ClassifyAttachesLabels(t *testing.T) {
	env, d := testEnv(t, &scriptedLLM{t: t, replies: []string{
		"```json\n[\"risky\", \"safe\"]\n```",
	}})

	env.Context.Bind(state.NewList("accounts", []any{
		map[string]any{"id": "1"}, map[string]any{"id": "2"},
	}))
	res := dispatch(t, d, `CLASSIFY accounts WITH "risk level" AS labeled`)
	require.Equal(t, StatusSuccess, res.Status)

	items := res.Value.([]any)
	assert.Equal(t, "risky", items[0].(map[string]any)["label"])
	assert.Equal(t, "safe", items[1].(map[string]any)["label"])
}

func TestDispatch_AnalyzeAndGenerate(t *testing.T) {
	env, d := testEnv(t, &scriptedLLM{t: t, replies: []string{
		"Most activity clusters around p1.",
		"# Report\nDone.",
	}})

	env.Context.Bind(state.NewList("data", []any{map[string]any{"id": "p1"}}))

	res := dispatch(t, d, `ANALYZE data FOR "activity clusters" AS insight`)
	require.Equal(t, StatusSuccess, res.Status)
	dict := res.Value.(map[string]any)
	assert.Equal(t, "Most activity clusters around p1.", dict["insight"])

	res = dispatch(t, d, `GENERATE "report" FROM data WITH "one page" AS report`)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "# Report\nDone.", res.Value.(map[string]any)["content"])
}

func TestDispatch_SetAndAddField(t *testing.T) {
	env, d := testEnv(t, nil)

	env.Context.Bind(state.NewList("items", []any{
		map[string]any{"id": "1"},
	}))

	res := dispatch(t, d, `ADDFIELD items FIELD reviewed = true`)
	require.Equal(t, StatusSuccess, res.Status)

	v, _ := env.Context.Get("items")
	assert.Equal(t, true, v.Items[0].(map[string]any)["reviewed"])

	// Re-adding the same field name gets a numeric suffix.
	res = dispatch(t, d, `ADDFIELD items FIELD reviewed = false`)
	require.Equal(t, StatusSuccess, res.Status)
	v, _ = env.Context.Get("items")
	assert.Equal(t, false, v.Items[0].(map[string]any)["reviewed_1"])
}

func TestDispatch_SelectProjects(t *testing.T) {
	_, d := testEnv(t, nil)

	dispatch(t, d, `FIND nodes WHERE type = "PERSON" AS people`)
	res := dispatch(t, d, `SELECT people FIELDS name WHERE score > 7 AS names`)
	require.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 2, res.Count)

	for _, item := range res.Value.([]any) {
		m := item.(map[string]any)
		assert.Len(t, m, 1)
		assert.Contains(t, m, "name")
	}
}

func TestDispatch_ShowAndInspect(t *testing.T) {
	env, d := testEnv(t, nil)

	items := make([]any, 20)
	for i := range items {
		items[i] = map[string]any{"id": fmt.Sprintf("n%d", i)}
	}
	env.Context.Bind(state.NewList("big", items))

	res := dispatch(t, d, `SHOW big LIMIT 3`)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.Value.(string), "... 17 more")

	res = dispatch(t, d, `INSPECT big`)
	require.Equal(t, StatusSuccess, res.Status)
	meta := res.Value.(map[string]any)
	assert.Equal(t, "LIST", meta["type"])
	assert.Equal(t, 20, meta["size"])
}
