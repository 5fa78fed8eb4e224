// Package command implements the GASL command surface: one small grammar
// per verb, parsed into typed records the dispatcher consumes. Parsing is
// total — every failure is a *ParseError whose hint can be fed back to
// the plan author for self-correction.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gasl-lang/gasl/condition"
)

// Verb identifies the operation of a command. The set is closed; the
// dispatcher carries exactly one handler per verb.
type Verb string

const (
	// Discovery
	VerbFind    Verb = "FIND"
	VerbCount   Verb = "COUNT"
	VerbSelect  Verb = "SELECT"
	VerbShow    Verb = "SHOW"
	VerbInspect Verb = "INSPECT"

	// LLM processing
	VerbProcess  Verb = "PROCESS"
	VerbClassify Verb = "CLASSIFY"
	VerbAnalyze  Verb = "ANALYZE"
	VerbGenerate Verb = "GENERATE"

	// State
	VerbDeclare  Verb = "DECLARE"
	VerbUpdate   Verb = "UPDATE"
	VerbSet      Verb = "SET"
	VerbAddField Verb = "ADDFIELD"

	// Graph navigation
	VerbGraphWalk    Verb = "GRAPHWALK"
	VerbGraphConnect Verb = "GRAPHCONNECT"
	VerbSubgraph     Verb = "SUBGRAPH"
	VerbGraphPattern Verb = "GRAPHPATTERN"

	// Combination
	VerbJoin    Verb = "JOIN"
	VerbMerge   Verb = "MERGE"
	VerbCompare Verb = "COMPARE"

	// Transformation
	VerbAggregate Verb = "AGGREGATE"
	VerbGroup     Verb = "GROUP"
	VerbRank      Verb = "RANK"

	// Graph mutation (additive only)
	VerbCreate Verb = "CREATE"

	// Control flow
	VerbRequire Verb = "REQUIRE"
	VerbAssert  Verb = "ASSERT"
	VerbOn      Verb = "ON"
	VerbTry     Verb = "TRY"
	VerbCatch   Verb = "CATCH"
	VerbFinally Verb = "FINALLY"
	VerbCancel  Verb = "CANCEL"
)

// UpdateMode selects how UPDATE writes into its target.
type UpdateMode string

const (
	UpdateMerge   UpdateMode = "MERGE"
	UpdateReplace UpdateMode = "REPLACE"
	UpdateAppend  UpdateMode = "APPEND"
)

// Command is one parsed instruction. Exactly one of the per-verb argument
// pointers is non-nil, matching Verb. Commands are immutable once parsed.
type Command struct {
	Verb   Verb
	Output string // binding name from AS; "" for control/display verbs
	Raw    string

	Declare  *DeclareArgs
	Find     *FindArgs
	Count    *CountArgs
	Select   *SelectArgs
	Show     *ShowArgs
	Inspect  *InspectArgs
	Process  *ProcessArgs
	Classify *ClassifyArgs
	Analyze  *AnalyzeArgs
	Generate *GenerateArgs
	Update   *UpdateArgs
	Set      *SetArgs
	AddField *AddFieldArgs
	Walk     *WalkArgs
	Connect  *ConnectArgs
	Subgraph *SubgraphArgs
	Pattern  *PatternArgs
	Join     *JoinArgs
	Merge    *MergeArgs
	Compare  *CompareArgs
	Aggr     *AggregateArgs
	Group    *GroupArgs
	Rank     *RankArgs
	Create   *CreateArgs
	Check    *CheckArgs // REQUIRE and ASSERT
	On       *OnArgs
	Wrapped  *Command // TRY/CATCH/FINALLY inner command
	Cancel   *CancelArgs
}

// DeclareArgs: DECLARE <name> AS LIST|DICT|COUNTER [WITH_DESCRIPTION "..."]
type DeclareArgs struct {
	Name        string
	Type        string
	Description string
}

// FindArgs: FIND nodes|edges|paths WHERE <predicate> [LIMIT n] AS <out>
type FindArgs struct {
	Target string // nodes, edges, paths
	Where  condition.Expr
	Limit  int
}

// CountArgs: COUNT <src> [FIELD <f>] [UNIQUE] [WHERE <cond>] [GROUP BY <g>] AS <out>
type CountArgs struct {
	Source  string
	Field   string
	Unique  bool
	Where   condition.Expr
	GroupBy string
}

// SelectArgs: SELECT <src> FIELDS f1, f2 [WHERE <cond>] AS <out>
type SelectArgs struct {
	Source string
	Fields []string
	Where  condition.Expr
}

// ShowArgs: SHOW <name> [LIMIT n]
type ShowArgs struct {
	Name  string
	Limit int
}

// InspectArgs: INSPECT <name>
type InspectArgs struct {
	Name string
}

// ProcessArgs: PROCESS <src> WITH "instruction" AS <out>
type ProcessArgs struct {
	Source      string
	Instruction string
}

// ClassifyArgs: CLASSIFY <src> WITH "instruction" AS <out>
type ClassifyArgs struct {
	Source      string
	Instruction string
}

// AnalyzeArgs: ANALYZE <src> FOR "analysis" AS <out>
type AnalyzeArgs struct {
	Source   string
	Analysis string
}

// GenerateArgs: GENERATE "content type" FROM <src> WITH "spec" AS <out>
type GenerateArgs struct {
	ContentType string
	Source      string
	Spec        string
}

// UpdateArgs: UPDATE <target> WITH <source> MERGE [ON key] | REPLACE | APPEND
type UpdateArgs struct {
	Target string
	Source string
	Mode   UpdateMode
	Key    string // identity key for MERGE de-duplication
}

// SetArgs: SET <name> = <literal>
type SetArgs struct {
	Name  string
	Value any
}

// AddFieldArgs: ADDFIELD <target> FIELD <name> = <literal>
type AddFieldArgs struct {
	Target string
	Field  string
	Value  any
}

// WalkArgs: GRAPHWALK FROM <src> FOLLOW rel[,rel] [DEPTH n] [DIRECTION d] AS <out>
type WalkArgs struct {
	Source    string
	Relations []string // ["any"] follows every edge type
	Depth     int
	Direction string // out, in, both
}

// ConnectArgs: GRAPHCONNECT <from> TO <to> [VIA rel[,rel]] [MAXLEN n] AS <out>
type ConnectArgs struct {
	From      string
	To        string
	Relations []string
	MaxLen    int
}

// SubgraphArgs: SUBGRAPH AROUND <src> RADIUS n [INCLUDE t1, t2] AS <out>
type SubgraphArgs struct {
	Source  string
	Radius  int
	Include []string
}

// PatternArgs: GRAPHPATTERN FIND fan_out|fan_in|isolated [THRESHOLD n] IN <src> AS <out>
type PatternArgs struct {
	Pattern   string
	Threshold int
	Source    string
}

// JoinArgs: JOIN <left> WITH <right> ON lkey[=rkey] AS <out>
type JoinArgs struct {
	Left     string
	Right    string
	LeftKey  string
	RightKey string
}

// MergeArgs: MERGE v1, v2[, ...] [ON key] AS <out>
type MergeArgs struct {
	Sources []string
	Key     string
}

// CompareArgs: COMPARE <left> WITH <right> ON <field> AS <out>
type CompareArgs struct {
	Left  string
	Right string
	Field string
}

// AggregateArgs: AGGREGATE <src> BY <field> WITH sum|avg|min|max|count <valueField> AS <out>
type AggregateArgs struct {
	Source     string
	By         string
	Op         string
	ValueField string // empty for count
}

// GroupArgs: GROUP <src> BY <field> AS <out>
type GroupArgs struct {
	Source string
	Field  string
}

// RankArgs: RANK <src> BY <field> [ORDER asc|desc] [LIMIT n] AS <out>
type RankArgs struct {
	Source string
	Field  string
	Order  string
	Limit  int
}

// CreateArgs: CREATE nodes|edges FROM <src> [AS <out>]
type CreateArgs struct {
	Kind   string
	Source string
}

// CheckArgs backs REQUIRE and ASSERT:
//
//	REQUIRE <name> NOT_EMPTY
//	REQUIRE <name> COUNT <op> <n>
type CheckArgs struct {
	Name  string
	Kind  string // not_empty, count
	Op    string // comparison operator for count checks
	Value float64
}

// OnArgs: ON success|error|empty DO <command>
type OnArgs struct {
	Status string
	Action *Command
}

// CancelArgs: CANCEL PLAN "<id>"
type CancelArgs struct {
	PlanID string
}

// String renders the command in canonical form. Parsing the result yields
// a structurally equal Command.
func (c *Command) String() string {
	var b strings.Builder
	switch c.Verb {
	case VerbDeclare:
		fmt.Fprintf(&b, "DECLARE %s AS %s", c.Declare.Name, c.Declare.Type)
		if c.Declare.Description != "" {
			fmt.Fprintf(&b, " WITH_DESCRIPTION %q", c.Declare.Description)
		}
	case VerbFind:
		fmt.Fprintf(&b, "FIND %s WHERE %s", c.Find.Target, c.Find.Where.String())
		if c.Find.Limit > 0 {
			fmt.Fprintf(&b, " LIMIT %d", c.Find.Limit)
		}
	case VerbCount:
		fmt.Fprintf(&b, "COUNT %s", c.Count.Source)
		if c.Count.Field != "" {
			fmt.Fprintf(&b, " FIELD %s", c.Count.Field)
		}
		if c.Count.Unique {
			b.WriteString(" UNIQUE")
		}
		if c.Count.Where != nil {
			fmt.Fprintf(&b, " WHERE %s", c.Count.Where.String())
		}
		if c.Count.GroupBy != "" {
			fmt.Fprintf(&b, " GROUP BY %s", c.Count.GroupBy)
		}
	case VerbSelect:
		fmt.Fprintf(&b, "SELECT %s FIELDS %s", c.Select.Source, strings.Join(c.Select.Fields, ", "))
		if c.Select.Where != nil {
			fmt.Fprintf(&b, " WHERE %s", c.Select.Where.String())
		}
	case VerbShow:
		fmt.Fprintf(&b, "SHOW %s", c.Show.Name)
		if c.Show.Limit > 0 {
			fmt.Fprintf(&b, " LIMIT %d", c.Show.Limit)
		}
	case VerbInspect:
		fmt.Fprintf(&b, "INSPECT %s", c.Inspect.Name)
	case VerbProcess:
		fmt.Fprintf(&b, "PROCESS %s WITH %q", c.Process.Source, c.Process.Instruction)
	case VerbClassify:
		fmt.Fprintf(&b, "CLASSIFY %s WITH %q", c.Classify.Source, c.Classify.Instruction)
	case VerbAnalyze:
		fmt.Fprintf(&b, "ANALYZE %s FOR %q", c.Analyze.Source, c.Analyze.Analysis)
	case VerbGenerate:
		fmt.Fprintf(&b, "GENERATE %q FROM %s WITH %q", c.Generate.ContentType, c.Generate.Source, c.Generate.Spec)
	case VerbUpdate:
		fmt.Fprintf(&b, "UPDATE %s WITH %s %s", c.Update.Target, c.Update.Source, c.Update.Mode)
		if c.Update.Key != "" {
			fmt.Fprintf(&b, " ON %s", c.Update.Key)
		}
	case VerbSet:
		fmt.Fprintf(&b, "SET %s = %s", c.Set.Name, literalString(c.Set.Value))
	case VerbAddField:
		fmt.Fprintf(&b, "ADDFIELD %s FIELD %s = %s", c.AddField.Target, c.AddField.Field, literalString(c.AddField.Value))
	case VerbGraphWalk:
		fmt.Fprintf(&b, "GRAPHWALK FROM %s FOLLOW %s", c.Walk.Source, strings.Join(c.Walk.Relations, ", "))
		if c.Walk.Depth > 0 {
			fmt.Fprintf(&b, " DEPTH %d", c.Walk.Depth)
		}
		if c.Walk.Direction != "" {
			fmt.Fprintf(&b, " DIRECTION %s", c.Walk.Direction)
		}
	case VerbGraphConnect:
		fmt.Fprintf(&b, "GRAPHCONNECT %s TO %s", c.Connect.From, c.Connect.To)
		if len(c.Connect.Relations) > 0 {
			fmt.Fprintf(&b, " VIA %s", strings.Join(c.Connect.Relations, ", "))
		}
		if c.Connect.MaxLen > 0 {
			fmt.Fprintf(&b, " MAXLEN %d", c.Connect.MaxLen)
		}
	case VerbSubgraph:
		fmt.Fprintf(&b, "SUBGRAPH AROUND %s RADIUS %d", c.Subgraph.Source, c.Subgraph.Radius)
		if len(c.Subgraph.Include) > 0 {
			fmt.Fprintf(&b, " INCLUDE %s", strings.Join(c.Subgraph.Include, ", "))
		}
	case VerbGraphPattern:
		fmt.Fprintf(&b, "GRAPHPATTERN FIND %s", c.Pattern.Pattern)
		if c.Pattern.Threshold > 0 {
			fmt.Fprintf(&b, " THRESHOLD %d", c.Pattern.Threshold)
		}
		fmt.Fprintf(&b, " IN %s", c.Pattern.Source)
	case VerbJoin:
		fmt.Fprintf(&b, "JOIN %s WITH %s ON %s", c.Join.Left, c.Join.Right, c.Join.LeftKey)
		if c.Join.RightKey != c.Join.LeftKey {
			fmt.Fprintf(&b, " = %s", c.Join.RightKey)
		}
	case VerbMerge:
		fmt.Fprintf(&b, "MERGE %s", strings.Join(c.Merge.Sources, ", "))
		if c.Merge.Key != "" {
			fmt.Fprintf(&b, " ON %s", c.Merge.Key)
		}
	case VerbCompare:
		fmt.Fprintf(&b, "COMPARE %s WITH %s ON %s", c.Compare.Left, c.Compare.Right, c.Compare.Field)
	case VerbAggregate:
		fmt.Fprintf(&b, "AGGREGATE %s BY %s WITH %s", c.Aggr.Source, c.Aggr.By, c.Aggr.Op)
		if c.Aggr.ValueField != "" {
			fmt.Fprintf(&b, " %s", c.Aggr.ValueField)
		}
	case VerbGroup:
		fmt.Fprintf(&b, "GROUP %s BY %s", c.Group.Source, c.Group.Field)
	case VerbRank:
		fmt.Fprintf(&b, "RANK %s BY %s", c.Rank.Source, c.Rank.Field)
		if c.Rank.Order != "" {
			fmt.Fprintf(&b, " ORDER %s", c.Rank.Order)
		}
		if c.Rank.Limit > 0 {
			fmt.Fprintf(&b, " LIMIT %d", c.Rank.Limit)
		}
	case VerbCreate:
		fmt.Fprintf(&b, "CREATE %s FROM %s", c.Create.Kind, c.Create.Source)
	case VerbRequire, VerbAssert:
		fmt.Fprintf(&b, "%s %s", c.Verb, c.Check.Name)
		if c.Check.Kind == "not_empty" {
			b.WriteString(" NOT_EMPTY")
		} else {
			fmt.Fprintf(&b, " COUNT %s %s", c.Check.Op, formatNumber(c.Check.Value))
		}
	case VerbOn:
		fmt.Fprintf(&b, "ON %s DO %s", c.On.Status, c.On.Action.String())
	case VerbTry, VerbCatch, VerbFinally:
		fmt.Fprintf(&b, "%s %s", c.Verb, c.Wrapped.String())
	case VerbCancel:
		fmt.Fprintf(&b, "CANCEL PLAN %q", c.Cancel.PlanID)
	}
	if c.Output != "" {
		fmt.Fprintf(&b, " AS %s", c.Output)
	}
	return b.String()
}

func literalString(v any) string {
	switch n := v.(type) {
	case string:
		return strconv.Quote(n)
	case float64:
		return formatNumber(n)
	case bool:
		return strconv.FormatBool(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
