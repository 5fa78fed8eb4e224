package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleComparison(t *testing.T) {
	expr, err := Parse(`entity_type = "PERSON"`)
	require.NoError(t, err)

	assert.True(t, expr.Evaluate(map[string]any{"entity_type": "PERSON"}))
	assert.False(t, expr.Evaluate(map[string]any{"entity_type": "PAPER"}))
}

func TestMissingAttributeNeverMatches(t *testing.T) {
	cases := []string{
		`name = "A"`,
		`name != "A"`,
		`count > 3`,
		`count <= 3`,
		`name CONTAINS "A"`,
		`name IN ["A", "B"]`,
		`name NOT IN ["A", "B"]`,
	}
	for _, input := range cases {
		expr, err := Parse(input)
		require.NoError(t, err, input)
		assert.False(t, expr.Evaluate(map[string]any{"other": "x"}), input)
		assert.False(t, expr.Evaluate(map[string]any{}), input)
	}
}

func TestNumericCoercion(t *testing.T) {
	expr, err := Parse(`citations > 10`)
	require.NoError(t, err)

	assert.True(t, expr.Evaluate(map[string]any{"citations": 11}))
	assert.True(t, expr.Evaluate(map[string]any{"citations": "42"}))
	assert.False(t, expr.Evaluate(map[string]any{"citations": "many"}))
	assert.False(t, expr.Evaluate(map[string]any{"citations": 3.5}))
}

func TestEqualityCoercesNumbers(t *testing.T) {
	expr, err := Parse(`year = 2021`)
	require.NoError(t, err)

	assert.True(t, expr.Evaluate(map[string]any{"year": "2021"}))
	assert.True(t, expr.Evaluate(map[string]any{"year": 2021}))
	assert.False(t, expr.Evaluate(map[string]any{"year": 2020}))
}

func TestStringOperators(t *testing.T) {
	attrs := map[string]any{"description": "studies protein folding"}

	for input, want := range map[string]bool{
		`description CONTAINS "protein"`:    true,
		`description CONTAINS "Protein"`:    false, // case-sensitive
		`description STARTS_WITH "studies"`: true,
		`description ENDS_WITH "folding"`:   true,
		`description ENDS_WITH "studies"`:   false,
	} {
		expr, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, expr.Evaluate(attrs), input)
	}
}

func TestMembership(t *testing.T) {
	expr, err := Parse(`entity_type IN ["PERSON", "INSTITUTION"]`)
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]any{"entity_type": "PERSON"}))
	assert.False(t, expr.Evaluate(map[string]any{"entity_type": "PAPER"}))

	expr, err = Parse(`entity_type NOT IN ["PERSON"]`)
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]any{"entity_type": "PAPER"}))
	assert.False(t, expr.Evaluate(map[string]any{"entity_type": "PERSON"}))
}

func TestLeftToRightAssociativity(t *testing.T) {
	// a AND b OR c parses as (a AND b) OR c.
	expr, err := Parse(`a = 1 AND b = 1 OR c = 1`)
	require.NoError(t, err)

	assert.True(t, expr.Evaluate(map[string]any{"a": 0, "b": 0, "c": 1}))
	assert.True(t, expr.Evaluate(map[string]any{"a": 1, "b": 1, "c": 0}))
	assert.False(t, expr.Evaluate(map[string]any{"a": 1, "b": 0, "c": 0}))
}

func TestParenthesesOverrideChaining(t *testing.T) {
	expr, err := Parse(`a = 1 AND (b = 1 OR c = 1)`)
	require.NoError(t, err)

	assert.False(t, expr.Evaluate(map[string]any{"a": 0, "b": 0, "c": 1}))
	assert.True(t, expr.Evaluate(map[string]any{"a": 1, "b": 0, "c": 1}))
}

func TestBareWordLiterals(t *testing.T) {
	expr, err := Parse(`entity_type = PERSON`)
	require.NoError(t, err)
	assert.True(t, expr.Evaluate(map[string]any{"entity_type": "PERSON"}))
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"",
		`name =`,
		`= "A"`,
		`name CONTAINS`,
		`name IN`,
		`(name = "A"`,
		`name ~ "A"`,
		`name = "unterminated`,
	} {
		_, err := Parse(input)
		assert.Error(t, err, input)
		if err != nil {
			var ce *ConditionError
			assert.ErrorAs(t, err, &ce, input)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, input := range []string{
		`entity_type = "PERSON"`,
		`score >= 0.5 AND entity_type IN ["PERSON", "PAPER"]`,
		`(a = 1 OR b = 2) AND c CONTAINS "x"`,
	} {
		expr, err := Parse(input)
		require.NoError(t, err, input)
		again, err := Parse(expr.String())
		require.NoError(t, err, expr.String())
		assert.Equal(t, expr.String(), again.String(), input)
	}
}
