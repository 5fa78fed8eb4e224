package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gasl-lang/gasl/condition"
)

// Parse converts one command string into a Command. Each verb has its own
// keyword-delimited grammar; predicates are delegated to the condition
// parser. Keyword scanning is quote-aware, so instruction strings may
// freely contain keywords.
func Parse(raw string) (*Command, error) {
	text := normalizeSpaces(raw)
	if text == "" {
		return nil, &ParseError{Raw: raw, Message: "empty command"}
	}

	verbWord, rest := splitFirstWord(text)
	verb := Verb(strings.ToUpper(verbWord))

	switch verb {
	case VerbDeclare:
		return parseDeclare(raw, rest)
	case VerbFind:
		return parseFind(raw, rest)
	case VerbCount:
		return parseCount(raw, rest)
	case VerbSelect:
		return parseSelect(raw, rest)
	case VerbShow:
		return parseShow(raw, rest)
	case VerbInspect:
		return parseInspect(raw, rest)
	case VerbProcess, VerbClassify:
		return parseInstruction(raw, rest, verb)
	case VerbAnalyze:
		return parseAnalyze(raw, rest)
	case VerbGenerate:
		return parseGenerate(raw, rest)
	case VerbUpdate:
		return parseUpdate(raw, rest)
	case VerbSet:
		return parseSet(raw, rest)
	case VerbAddField:
		return parseAddField(raw, rest)
	case VerbGraphWalk:
		return parseGraphWalk(raw, rest)
	case VerbGraphConnect:
		return parseGraphConnect(raw, rest)
	case VerbSubgraph:
		return parseSubgraph(raw, rest)
	case VerbGraphPattern:
		return parseGraphPattern(raw, rest)
	case VerbJoin:
		return parseJoin(raw, rest)
	case VerbMerge:
		return parseMerge(raw, rest)
	case VerbCompare:
		return parseCompare(raw, rest)
	case VerbAggregate:
		return parseAggregate(raw, rest)
	case VerbGroup:
		return parseGroup(raw, rest)
	case VerbRank:
		return parseRank(raw, rest)
	case VerbCreate:
		return parseCreate(raw, rest)
	case VerbRequire, VerbAssert:
		return parseCheck(raw, rest, verb)
	case VerbOn:
		return parseOn(raw, rest)
	case VerbTry, VerbCatch, VerbFinally:
		return parseWrapped(raw, rest, verb)
	case VerbCancel:
		return parseCancel(raw, rest)
	}
	return nil, &ParseError{
		Raw:     raw,
		Message: fmt.Sprintf("unknown verb %q", verbWord),
		Hint:    "start the command with one of: FIND, COUNT, SELECT, SHOW, INSPECT, PROCESS, CLASSIFY, ANALYZE, GENERATE, DECLARE, UPDATE, SET, ADDFIELD, GRAPHWALK, GRAPHCONNECT, SUBGRAPH, GRAPHPATTERN, JOIN, MERGE, COMPARE, AGGREGATE, GROUP, RANK, CREATE, REQUIRE, ASSERT, ON, TRY, CATCH, FINALLY, CANCEL",
	}
}

func parseDeclare(raw, rest string) (*Command, error) {
	description := ""
	if left, right, ok := cutKeyword(rest, "WITH_DESCRIPTION"); ok {
		rest = left
		d, err := unquote(raw, right)
		if err != nil {
			return nil, err
		}
		description = d
	}
	name, typeStr, ok := cutKeyword(rest, "AS")
	if !ok {
		return nil, hintErr(raw, "missing AS clause", `use DECLARE <name> AS LIST|DICT|COUNTER [WITH_DESCRIPTION "..."]`)
	}
	typeStr = strings.ToUpper(typeStr)
	if typeStr != "LIST" && typeStr != "DICT" && typeStr != "COUNTER" {
		return nil, hintErr(raw, fmt.Sprintf("unknown variable type %q", typeStr), "the type must be LIST, DICT or COUNTER")
	}
	if err := checkIdent(raw, name); err != nil {
		return nil, err
	}
	return &Command{
		Verb:    VerbDeclare,
		Raw:     raw,
		Declare: &DeclareArgs{Name: name, Type: typeStr, Description: description},
	}, nil
}

func parseFind(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	limit := 0
	if left, right, ok := cutKeyword(rest, "LIMIT"); ok {
		rest = left
		limit, err = parseInt(raw, right, "LIMIT")
		if err != nil {
			return nil, err
		}
	}
	target, predicate, ok := cutKeyword(rest, "WHERE")
	if !ok {
		// `FIND nodes with <criteria>` is accepted as a synonym.
		target, predicate, ok = cutKeyword(rest, "WITH")
	}
	if !ok {
		return nil, hintErr(raw, "missing WHERE clause", `use FIND nodes|edges|paths WHERE <predicate> [LIMIT n] AS <name>`)
	}
	target = strings.ToLower(target)
	if target != "nodes" && target != "edges" && target != "paths" {
		return nil, hintErr(raw, fmt.Sprintf("unknown FIND target %q", target), "the target must be nodes, edges or paths")
	}
	where, err := parsePredicate(raw, predicate)
	if err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbFind,
		Raw:    raw,
		Output: output,
		Find:   &FindArgs{Target: target, Where: where, Limit: limit},
	}, nil
}

func parseCount(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	groupBy := ""
	if left, right, ok := cutKeyword(rest, "GROUP BY"); ok {
		rest, groupBy = left, right
	}
	var where condition.Expr
	if left, right, ok := cutKeyword(rest, "WHERE"); ok {
		rest = left
		where, err = parsePredicate(raw, right)
		if err != nil {
			return nil, err
		}
	}
	unique := false
	if left, right, ok := cutKeyword(rest, "UNIQUE"); ok {
		rest = strings.TrimSpace(left + " " + right)
		unique = true
	}
	field := ""
	if left, right, ok := cutKeyword(rest, "FIELD"); ok {
		rest, field = left, right
	}
	source := strings.TrimSpace(rest)
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbCount,
		Raw:    raw,
		Output: output,
		Count:  &CountArgs{Source: source, Field: field, Unique: unique, Where: where, GroupBy: groupBy},
	}, nil
}

func parseSelect(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	var where condition.Expr
	if left, right, ok := cutKeyword(rest, "WHERE"); ok {
		rest = left
		where, err = parsePredicate(raw, right)
		if err != nil {
			return nil, err
		}
	}
	source, fieldList, ok := cutKeyword(rest, "FIELDS")
	if !ok {
		return nil, hintErr(raw, "missing FIELDS clause", `use SELECT <var> FIELDS f1, f2 [WHERE <predicate>] AS <name>`)
	}
	fields := splitList(fieldList)
	if len(fields) == 0 {
		return nil, hintErr(raw, "empty field list", "name at least one field after FIELDS")
	}
	return &Command{
		Verb:   VerbSelect,
		Raw:    raw,
		Output: output,
		Select: &SelectArgs{Source: source, Fields: fields, Where: where},
	}, nil
}

func parseShow(raw, rest string) (*Command, error) {
	limit := 0
	var err error
	if left, right, ok := cutKeyword(rest, "LIMIT"); ok {
		rest = left
		limit, err = parseInt(raw, right, "LIMIT")
		if err != nil {
			return nil, err
		}
	}
	name := strings.TrimSpace(rest)
	if err := checkIdent(raw, name); err != nil {
		return nil, err
	}
	return &Command{Verb: VerbShow, Raw: raw, Show: &ShowArgs{Name: name, Limit: limit}}, nil
}

func parseInspect(raw, rest string) (*Command, error) {
	name := strings.TrimSpace(rest)
	if err := checkIdent(raw, name); err != nil {
		return nil, err
	}
	return &Command{Verb: VerbInspect, Raw: raw, Inspect: &InspectArgs{Name: name}}, nil
}

func parseInstruction(raw, rest string, verb Verb) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	source, quoted, ok := cutKeyword(rest, "WITH")
	if !ok {
		return nil, hintErr(raw, "missing WITH clause", fmt.Sprintf(`use %s <var> WITH "instruction" AS <name>`, verb))
	}
	instruction, err := unquote(raw, quoted)
	if err != nil {
		return nil, err
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	cmd := &Command{Verb: verb, Raw: raw, Output: output}
	if verb == VerbProcess {
		cmd.Process = &ProcessArgs{Source: source, Instruction: instruction}
	} else {
		cmd.Classify = &ClassifyArgs{Source: source, Instruction: instruction}
	}
	return cmd, nil
}

func parseAnalyze(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	source, quoted, ok := cutKeyword(rest, "FOR")
	if !ok {
		return nil, hintErr(raw, "missing FOR clause", `use ANALYZE <var> FOR "analysis goal" AS <name>`)
	}
	analysis, err := unquote(raw, quoted)
	if err != nil {
		return nil, err
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:    VerbAnalyze,
		Raw:     raw,
		Output:  output,
		Analyze: &AnalyzeArgs{Source: source, Analysis: analysis},
	}, nil
}

func parseGenerate(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	rest, quotedSpec, ok := cutKeyword(rest, "WITH")
	if !ok {
		return nil, hintErr(raw, "missing WITH clause", `use GENERATE "content type" FROM <var> WITH "specification" AS <name>`)
	}
	spec, err := unquote(raw, quotedSpec)
	if err != nil {
		return nil, err
	}
	quotedType, source, ok := cutKeyword(rest, "FROM")
	if !ok {
		return nil, hintErr(raw, "missing FROM clause", `use GENERATE "content type" FROM <var> WITH "specification" AS <name>`)
	}
	contentType, err := unquote(raw, quotedType)
	if err != nil {
		return nil, err
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:     VerbGenerate,
		Raw:      raw,
		Output:   output,
		Generate: &GenerateArgs{ContentType: contentType, Source: source, Spec: spec},
	}, nil
}

func parseUpdate(raw, rest string) (*Command, error) {
	key := ""
	if left, right, ok := cutKeyword(rest, "ON"); ok {
		rest, key = left, right
	}
	target, tail, ok := cutKeyword(rest, "WITH")
	if !ok {
		return nil, hintErr(raw, "missing WITH clause", `use UPDATE <state_var> WITH <context_var> MERGE|REPLACE|APPEND [ON <key>]`)
	}
	parts := strings.Fields(tail)
	if len(parts) != 2 {
		return nil, hintErr(raw, "expected a source variable and a mode after WITH", "for example: UPDATE authors WITH found MERGE ON id")
	}
	source := parts[0]
	mode := UpdateMode(strings.ToUpper(parts[1]))
	switch mode {
	case UpdateMerge, UpdateReplace, UpdateAppend:
	default:
		return nil, hintErr(raw, fmt.Sprintf("unknown update mode %q", parts[1]), "the mode must be MERGE, REPLACE or APPEND")
	}
	if err := checkIdent(raw, target); err != nil {
		return nil, err
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbUpdate,
		Raw:    raw,
		Update: &UpdateArgs{Target: target, Source: source, Mode: mode, Key: key},
	}, nil
}

func parseSet(raw, rest string) (*Command, error) {
	name, value, ok := cutRune(rest, '=')
	if !ok {
		return nil, hintErr(raw, "missing = sign", `use SET <name> = <value>`)
	}
	if err := checkIdent(raw, name); err != nil {
		return nil, err
	}
	literal, err := parseLiteral(raw, value)
	if err != nil {
		return nil, err
	}
	return &Command{Verb: VerbSet, Raw: raw, Set: &SetArgs{Name: name, Value: literal}}, nil
}

func parseAddField(raw, rest string) (*Command, error) {
	target, tail, ok := cutKeyword(rest, "FIELD")
	if !ok {
		return nil, hintErr(raw, "missing FIELD clause", `use ADDFIELD <var> FIELD <name> = <value>`)
	}
	field, value, ok := cutRune(tail, '=')
	if !ok {
		return nil, hintErr(raw, "missing = sign", `use ADDFIELD <var> FIELD <name> = <value>`)
	}
	if err := checkIdent(raw, target); err != nil {
		return nil, err
	}
	if err := checkIdent(raw, field); err != nil {
		return nil, err
	}
	literal, err := parseLiteral(raw, value)
	if err != nil {
		return nil, err
	}
	return &Command{
		Verb:     VerbAddField,
		Raw:      raw,
		AddField: &AddFieldArgs{Target: target, Field: field, Value: literal},
	}, nil
}

func parseGraphWalk(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	direction := ""
	if left, right, ok := cutKeyword(rest, "DIRECTION"); ok {
		rest = left
		direction = strings.ToLower(right)
		if direction != "out" && direction != "in" && direction != "both" {
			return nil, hintErr(raw, fmt.Sprintf("unknown direction %q", right), "the direction must be out, in or both")
		}
	}
	depth := 0
	if left, right, ok := cutKeyword(rest, "DEPTH"); ok {
		rest = left
		depth, err = parseInt(raw, right, "DEPTH")
		if err != nil {
			return nil, err
		}
	}
	fromPart, relText, ok := cutKeyword(rest, "FOLLOW")
	if !ok {
		return nil, hintErr(raw, "missing FOLLOW clause", `use GRAPHWALK FROM <var> FOLLOW <relation>|any [DEPTH n] AS <name>`)
	}
	empty, source, ok := cutKeyword(fromPart, "FROM")
	if !ok || empty != "" {
		return nil, hintErr(raw, "missing FROM clause", `use GRAPHWALK FROM <var> FOLLOW <relation>|any [DEPTH n] AS <name>`)
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbGraphWalk,
		Raw:    raw,
		Output: output,
		Walk:   &WalkArgs{Source: source, Relations: splitList(relText), Depth: depth, Direction: direction},
	}, nil
}

func parseGraphConnect(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	maxLen := 0
	if left, right, ok := cutKeyword(rest, "MAXLEN"); ok {
		rest = left
		maxLen, err = parseInt(raw, right, "MAXLEN")
		if err != nil {
			return nil, err
		}
	}
	var relations []string
	if left, right, ok := cutKeyword(rest, "VIA"); ok {
		rest = left
		relations = splitList(right)
	}
	from, to, ok := cutKeyword(rest, "TO")
	if !ok {
		return nil, hintErr(raw, "missing TO clause", `use GRAPHCONNECT <var> TO <var> [VIA <relation>] [MAXLEN n] AS <name>`)
	}
	if err := checkIdent(raw, from); err != nil {
		return nil, err
	}
	if err := checkIdent(raw, to); err != nil {
		return nil, err
	}
	return &Command{
		Verb:    VerbGraphConnect,
		Raw:     raw,
		Output:  output,
		Connect: &ConnectArgs{From: from, To: to, Relations: relations, MaxLen: maxLen},
	}, nil
}

func parseSubgraph(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	var include []string
	if left, right, ok := cutKeyword(rest, "INCLUDE"); ok {
		rest = left
		include = splitList(right)
	}
	aroundPart, radiusText, ok := cutKeyword(rest, "RADIUS")
	if !ok {
		return nil, hintErr(raw, "missing RADIUS clause", `use SUBGRAPH AROUND <var> RADIUS n [INCLUDE t1, t2] AS <name>`)
	}
	radius, err := parseInt(raw, radiusText, "RADIUS")
	if err != nil {
		return nil, err
	}
	empty, source, ok := cutKeyword(aroundPart, "AROUND")
	if !ok || empty != "" {
		return nil, hintErr(raw, "missing AROUND clause", `use SUBGRAPH AROUND <var> RADIUS n [INCLUDE t1, t2] AS <name>`)
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:     VerbSubgraph,
		Raw:      raw,
		Output:   output,
		Subgraph: &SubgraphArgs{Source: source, Radius: radius, Include: include},
	}, nil
}

func parseGraphPattern(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	patternPart, source, ok := cutKeyword(rest, "IN")
	if !ok {
		return nil, hintErr(raw, "missing IN clause", `use GRAPHPATTERN FIND fan_out|fan_in|isolated [THRESHOLD n] IN <var> AS <name>`)
	}
	threshold := 0
	if left, right, ok := cutKeyword(patternPart, "THRESHOLD"); ok {
		patternPart = left
		threshold, err = parseInt(raw, right, "THRESHOLD")
		if err != nil {
			return nil, err
		}
	}
	empty, pattern, ok := cutKeyword(patternPart, "FIND")
	if !ok || empty != "" {
		return nil, hintErr(raw, "missing FIND clause", `use GRAPHPATTERN FIND fan_out|fan_in|isolated [THRESHOLD n] IN <var> AS <name>`)
	}
	pattern = strings.ToLower(pattern)
	if pattern != "fan_out" && pattern != "fan_in" && pattern != "isolated" {
		return nil, hintErr(raw, fmt.Sprintf("unknown pattern %q", pattern), "the pattern must be fan_out, fan_in or isolated")
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:    VerbGraphPattern,
		Raw:     raw,
		Output:  output,
		Pattern: &PatternArgs{Pattern: pattern, Threshold: threshold, Source: source},
	}, nil
}

func parseJoin(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	rest, keyPart, ok := cutKeyword(rest, "ON")
	if !ok {
		return nil, hintErr(raw, "missing ON clause", `use JOIN <var> WITH <var> ON <key>[= <other_key>] AS <name>`)
	}
	left, right, ok := cutKeyword(rest, "WITH")
	if !ok {
		return nil, hintErr(raw, "missing WITH clause", `use JOIN <var> WITH <var> ON <key>[= <other_key>] AS <name>`)
	}
	leftKey, rightKey, hasTwo := cutRune(keyPart, '=')
	if !hasTwo {
		leftKey, rightKey = strings.TrimSpace(keyPart), strings.TrimSpace(keyPart)
	}
	for _, name := range []string{left, right, leftKey, rightKey} {
		if err := checkIdent(raw, name); err != nil {
			return nil, err
		}
	}
	return &Command{
		Verb:   VerbJoin,
		Raw:    raw,
		Output: output,
		Join:   &JoinArgs{Left: left, Right: right, LeftKey: leftKey, RightKey: rightKey},
	}, nil
}

func parseMerge(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	key := ""
	if left, right, ok := cutKeyword(rest, "ON"); ok {
		rest, key = left, right
	}
	sources := splitList(rest)
	if len(sources) < 2 {
		return nil, hintErr(raw, "MERGE needs at least two source variables", `use MERGE v1, v2 [ON <key>] AS <name>`)
	}
	for _, name := range sources {
		if err := checkIdent(raw, name); err != nil {
			return nil, err
		}
	}
	return &Command{
		Verb:   VerbMerge,
		Raw:    raw,
		Output: output,
		Merge:  &MergeArgs{Sources: sources, Key: key},
	}, nil
}

func parseCompare(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	rest, field, ok := cutKeyword(rest, "ON")
	if !ok {
		return nil, hintErr(raw, "missing ON clause", `use COMPARE <var> WITH <var> ON <field> AS <name>`)
	}
	left, right, ok := cutKeyword(rest, "WITH")
	if !ok {
		return nil, hintErr(raw, "missing WITH clause", `use COMPARE <var> WITH <var> ON <field> AS <name>`)
	}
	for _, name := range []string{left, right, field} {
		if err := checkIdent(raw, name); err != nil {
			return nil, err
		}
	}
	return &Command{
		Verb:    VerbCompare,
		Raw:     raw,
		Output:  output,
		Compare: &CompareArgs{Left: left, Right: right, Field: field},
	}, nil
}

func parseAggregate(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	rest, opPart, ok := cutKeyword(rest, "WITH")
	if !ok {
		return nil, hintErr(raw, "missing WITH clause", `use AGGREGATE <var> BY <field> WITH sum|avg|min|max|count [<value_field>] AS <name>`)
	}
	source, by, ok := cutKeyword(rest, "BY")
	if !ok {
		return nil, hintErr(raw, "missing BY clause", `use AGGREGATE <var> BY <field> WITH sum|avg|min|max|count [<value_field>] AS <name>`)
	}
	opFields := strings.Fields(opPart)
	if len(opFields) == 0 {
		return nil, hintErr(raw, "missing aggregation operation", "name an operation after WITH: sum, avg, min, max or count")
	}
	op := strings.ToLower(opFields[0])
	valueField := ""
	if len(opFields) > 1 {
		valueField = opFields[1]
	}
	switch op {
	case "sum", "avg", "min", "max":
		if valueField == "" {
			return nil, hintErr(raw, fmt.Sprintf("%s needs a value field", op), "for example: AGGREGATE papers BY venue WITH sum citations AS totals")
		}
	case "count":
	default:
		return nil, hintErr(raw, fmt.Sprintf("unknown aggregation %q", op), "the operation must be sum, avg, min, max or count")
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbAggregate,
		Raw:    raw,
		Output: output,
		Aggr:   &AggregateArgs{Source: source, By: by, Op: op, ValueField: valueField},
	}, nil
}

func parseGroup(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	source, field, ok := cutKeyword(rest, "BY")
	if !ok {
		return nil, hintErr(raw, "missing BY clause", `use GROUP <var> BY <field> AS <name>`)
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbGroup,
		Raw:    raw,
		Output: output,
		Group:  &GroupArgs{Source: source, Field: field},
	}, nil
}

func parseRank(raw, rest string) (*Command, error) {
	rest, output, err := requireOutput(raw, rest)
	if err != nil {
		return nil, err
	}
	limit := 0
	if left, right, ok := cutKeyword(rest, "LIMIT"); ok {
		rest = left
		limit, err = parseInt(raw, right, "LIMIT")
		if err != nil {
			return nil, err
		}
	}
	order := ""
	if left, right, ok := cutKeyword(rest, "ORDER"); ok {
		rest = left
		order = strings.ToLower(right)
		if order != "asc" && order != "desc" {
			return nil, hintErr(raw, fmt.Sprintf("unknown order %q", right), "the order must be asc or desc")
		}
	}
	source, field, ok := cutKeyword(rest, "BY")
	if !ok {
		return nil, hintErr(raw, "missing BY clause", `use RANK <var> BY <field> [ORDER asc|desc] [LIMIT n] AS <name>`)
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbRank,
		Raw:    raw,
		Output: output,
		Rank:   &RankArgs{Source: source, Field: field, Order: order, Limit: limit},
	}, nil
}

func parseCreate(raw, rest string) (*Command, error) {
	output := ""
	if left, out, ok := cutKeyword(rest, "AS"); ok {
		rest = left
		if err := checkIdent(raw, out); err != nil {
			return nil, err
		}
		output = out
	}
	kind, source, ok := cutKeyword(rest, "FROM")
	if !ok {
		return nil, hintErr(raw, "missing FROM clause", `use CREATE nodes|edges FROM <var> [AS <name>]`)
	}
	kind = strings.ToLower(kind)
	if kind != "nodes" && kind != "edges" {
		return nil, hintErr(raw, fmt.Sprintf("unknown CREATE kind %q", kind), "the kind must be nodes or edges")
	}
	if err := checkIdent(raw, source); err != nil {
		return nil, err
	}
	return &Command{
		Verb:   VerbCreate,
		Raw:    raw,
		Output: output,
		Create: &CreateArgs{Kind: kind, Source: source},
	}, nil
}

func parseCheck(raw, rest string, verb Verb) (*Command, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, hintErr(raw, "missing check", fmt.Sprintf(`use %s <var> NOT_EMPTY or %s <var> COUNT >= <n>`, verb, verb))
	}
	name := fields[0]
	if err := checkIdent(raw, name); err != nil {
		return nil, err
	}
	check := &CheckArgs{Name: name}
	switch strings.ToUpper(fields[1]) {
	case "NOT_EMPTY":
		check.Kind = "not_empty"
		if len(fields) != 2 {
			return nil, hintErr(raw, "unexpected trailing input after NOT_EMPTY", "")
		}
	case "COUNT":
		if len(fields) != 4 {
			return nil, hintErr(raw, "malformed COUNT check", fmt.Sprintf(`use %s <var> COUNT <op> <n>, e.g. %s found COUNT >= 3`, verb, verb))
		}
		op := fields[2]
		switch op {
		case "=", "!=", ">", ">=", "<", "<=":
		default:
			return nil, hintErr(raw, fmt.Sprintf("unknown comparison %q", op), "use one of = != > >= < <=")
		}
		n, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, hintErr(raw, fmt.Sprintf("invalid number %q", fields[3]), "")
		}
		check.Kind = "count"
		check.Op = op
		check.Value = n
	default:
		return nil, hintErr(raw, fmt.Sprintf("unknown check %q", fields[1]), fmt.Sprintf(`use %s <var> NOT_EMPTY or %s <var> COUNT >= <n>`, verb, verb))
	}
	return &Command{Verb: verb, Raw: raw, Check: check}, nil
}

func parseOn(raw, rest string) (*Command, error) {
	status, actionText, ok := cutKeyword(rest, "DO")
	if !ok {
		return nil, hintErr(raw, "missing DO clause", `use ON success|error|empty DO <command>`)
	}
	status = strings.ToLower(status)
	if status != "success" && status != "error" && status != "empty" {
		return nil, hintErr(raw, fmt.Sprintf("unknown status %q", status), "the status must be success, error or empty")
	}
	action, err := Parse(actionText)
	if err != nil {
		return nil, err
	}
	return &Command{Verb: VerbOn, Raw: raw, On: &OnArgs{Status: status, Action: action}}, nil
}

func parseWrapped(raw, rest string, verb Verb) (*Command, error) {
	inner, err := Parse(rest)
	if err != nil {
		return nil, err
	}
	return &Command{Verb: verb, Raw: raw, Wrapped: inner}, nil
}

func parseCancel(raw, rest string) (*Command, error) {
	empty, quoted, ok := cutKeyword(rest, "PLAN")
	if !ok || empty != "" {
		return nil, hintErr(raw, "missing PLAN clause", `use CANCEL PLAN "<plan id>"`)
	}
	planID, err := unquote(raw, quoted)
	if err != nil {
		return nil, err
	}
	return &Command{Verb: VerbCancel, Raw: raw, Cancel: &CancelArgs{PlanID: planID}}, nil
}

// --- shared helpers ---

func hintErr(raw, message, hint string) *ParseError {
	return &ParseError{Raw: raw, Message: message, Hint: hint}
}

// normalizeSpaces collapses every run of whitespace outside quoted regions
// to a single space and trims the ends, so keyword scanning and canonical
// rendering see one spacing regardless of how the model formatted the
// command.
func normalizeSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	pending := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			pending = true
		case '"', '\'':
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			quote = c
			b.WriteByte(c)
		default:
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

func splitFirstWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}

func isWordChar(r byte) bool {
	return r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// indexKeyword finds kw as a standalone word outside quoted regions,
// case-insensitive. Multi-word keywords ("GROUP BY") match because Parse
// collapses whitespace runs outside quotes to single spaces up front.
func indexKeyword(s, kw string) int {
	for i := 0; i+len(kw) <= len(s); i++ {
		switch s[i] {
		case '"', '\'':
			quote := s[i]
			j := i + 1
			for j < len(s) && s[j] != quote {
				j++
			}
			i = j
			continue
		}
		if !strings.EqualFold(s[i:i+len(kw)], kw) {
			continue
		}
		if i > 0 && isWordChar(s[i-1]) {
			continue
		}
		end := i + len(kw)
		if end < len(s) && isWordChar(s[end]) {
			continue
		}
		return i
	}
	return -1
}

// cutKeyword splits s at the first occurrence of kw, trimming both sides.
func cutKeyword(s, kw string) (left, right string, ok bool) {
	idx := indexKeyword(s, kw)
	if idx < 0 {
		return s, "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+len(kw):]), true
}

// cutRune splits s at the first occurrence of r outside quotes.
func cutRune(s string, r byte) (left, right string, ok bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			quote := s[i]
			j := i + 1
			for j < len(s) && s[j] != quote {
				j++
			}
			i = j
		case r:
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
		}
	}
	return s, "", false
}

// requireOutput strips the trailing AS clause and returns the binding name.
func requireOutput(raw, rest string) (string, string, error) {
	idx := -1
	for from := 0; ; {
		next := indexKeyword(rest[from:], "AS")
		if next < 0 {
			break
		}
		idx = from + next
		from = idx + 2
	}
	if idx < 0 {
		return "", "", hintErr(raw, "missing AS output binding", "finish the command with AS <result_name>")
	}
	output := strings.TrimSpace(rest[idx+2:])
	if err := checkIdent(raw, output); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(rest[:idx]), output, nil
}

func checkIdent(raw, s string) error {
	if s == "" {
		return hintErr(raw, "missing variable name", "")
	}
	for i := 0; i < len(s); i++ {
		if !isWordChar(s[i]) {
			return hintErr(raw, fmt.Sprintf("invalid variable name %q", s), "names may contain letters, digits, underscores and dots")
		}
	}
	if s[0] >= '0' && s[0] <= '9' {
		return hintErr(raw, fmt.Sprintf("invalid variable name %q", s), "names must not start with a digit")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(raw, s, clause string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, hintErr(raw, fmt.Sprintf("invalid %s value %q", clause, s), "use a non-negative integer")
	}
	return n, nil
}

func unquote(raw, s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return "", hintErr(raw, fmt.Sprintf("expected a quoted string, got %q", s), `wrap the text in double quotes`)
	}
	if s[0] == '"' {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted, nil
		}
	}
	return s[1 : len(s)-1], nil
}

func parsePredicate(raw, s string) (condition.Expr, error) {
	expr, err := condition.Parse(s)
	if err != nil {
		condErr, ok := err.(*condition.ConditionError)
		if !ok {
			return nil, err
		}
		return nil, hintErr(raw, "malformed predicate: "+condErr.Message,
			`predicates look like: entity_type = "PERSON" AND degree > 3`)
	}
	return expr, nil
}

func parseLiteral(raw, s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, hintErr(raw, "missing value", "")
	}
	if s[0] == '"' || s[0] == '\'' {
		return unquote(raw, s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return s, nil
}
