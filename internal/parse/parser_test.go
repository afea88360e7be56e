package parse

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return New(zerolog.Nop())
}

func TestParse_Lists(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain array",
			input: `["item1", "item2", "item3"]`,
			want:  []string{"item1", "item2", "item3"},
		},
		{
			name:  "array in prose with blanks and padding",
			input: "Here is the result:\n[\"a\", \" b \", \"\"]\nEnd.",
			want:  []string{"a", "b"},
		},
		{
			name:  "markdown code fence",
			input: "```json\n[\"item1\", \"item2\"]\n```",
			want:  []string{"item1", "item2"},
		},
		{
			name:  "preamble before fence",
			input: "Summary below\n```json\n[\"a\", \"b\"]\n```",
			want:  []string{"a", "b"},
		},
		{
			name:  "trailing comma",
			input: `["a","b",]`,
			want:  []string{"a", "b"},
		},
		{
			name:  "trailing comma with whitespace",
			input: `["item1", "item2", ]`,
			want:  []string{"item1", "item2"},
		},
		{
			name:  "empty strings filtered",
			input: `["item1", "", "item2"]`,
			want:  []string{"item1", "item2"},
		},
		{
			name:  "bare string",
			input: `"single_item"`,
			want:  []string{"single_item"},
		},
		{
			name:  "multiline array after text",
			input: "Response was: summary of the text.\n\n[\n  \"creative culture\",\n  \"AI extracts features\"\n]",
			want:  []string{"creative culture", "AI extracts features"},
		},
		{
			name:  "array followed by more prose",
			input: `Response was: explanation [ "x", "y" ] and more`,
			want:  []string{"x", "y"},
		},
		{
			name:  "unparseable braces fall through to list",
			input: `note {not json} then ["kept"]`,
			want:  []string{"kept"},
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, KindList, res.Kind)
			assert.Equal(t, tt.want, res.List)
		})
	}
}

func TestParse_Keyed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string][]string
	}{
		{
			name:  "plain object",
			input: `{"1":["x"]}`,
			want:  map[string][]string{"1": {"x"}},
		},
		{
			name:  "object values are not trimmed",
			input: `{"1": [" item1 ", "item2"], "2": ["item3"]}`,
			want:  map[string][]string{"1": {" item1 ", "item2"}, "2": {"item3"}},
		},
		{
			name:  "object in prose",
			input: "Here is the result:\n{\"1\": [\"item1\"], \"2\": [\"item2\"]}\nEnd of result.",
			want:  map[string][]string{"1": {"item1"}, "2": {"item2"}},
		},
		{
			name:  "string value accepted as one element",
			input: `{"id1": "a"}`,
			want:  map[string][]string{"id1": {"a"}},
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, KindKeyed, res.Kind)
			assert.Equal(t, tt.want, res.Keyed)
		})
	}
}

func TestParse_NoStructuredList(t *testing.T) {
	p := newTestParser()

	for _, input := range []string{
		"This is not JSON",
		"No json here",
		"",
		"only an opening [ bracket",
	} {
		_, err := p.Parse(input)
		assert.ErrorIs(t, err, ErrNoStructuredList, "input %q", input)
	}
}

func TestParse_MalformedRegion(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse(`prefix [not, valid, json] suffix`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStructuredList)
}

func TestParse_NonStringElementsDegradeToEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := New(zerolog.New(&buf))

	res, err := p.Parse(`[1, 2, "three"]`)
	require.NoError(t, err)
	assert.Equal(t, KindList, res.Kind)
	assert.Empty(t, res.List)
	assert.Contains(t, buf.String(), "not a string")
}

func TestParse_Scalar(t *testing.T) {
	p := newTestParser()

	res, err := p.Parse(`42`)
	require.NoError(t, err)
	assert.Equal(t, KindScalar, res.Kind)
	assert.Equal(t, "42", res.Scalar)

	res, err = p.Parse(`null`)
	require.NoError(t, err)
	assert.Equal(t, KindScalar, res.Kind)
	assert.Equal(t, "null", res.Scalar)
}

func TestParse_Deterministic(t *testing.T) {
	p := newTestParser()
	input := "noise\n[\"b\", \"a\", \" c\"]\nmore noise"

	first, err := p.Parse(input)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Parse(input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFromValue(t *testing.T) {
	res, err := FromValue(map[string]any{"1": []any{"a", ""}, "2": []any{}})
	require.NoError(t, err)
	assert.Equal(t, KindKeyed, res.Kind)
	assert.Equal(t, map[string][]string{"1": {"a", ""}, "2": {}}, res.Keyed)

	_, err = FromValue(map[string]any{"1": float64(3)})
	assert.Error(t, err)

	_, err = FromValue([]any{"a", true})
	assert.Error(t, err)

	res, err = FromValue(true)
	require.NoError(t, err)
	assert.Equal(t, Scalar("true"), res)
}

func TestSelectKeyed(t *testing.T) {
	obj := map[string]any{
		"1":     []any{"a"},
		"2":     "b",
		"count": float64(2),
		"meta":  map[string]any{"x": 1},
	}

	res, err := SelectKeyed(obj, []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, KindKeyed, res.Kind)
	assert.Equal(t, map[string][]string{"1": {"a"}, "2": {"b"}}, res.Keyed)

	_, err = SelectKeyed(obj, []string{"1", "count"})
	assert.ErrorContains(t, err, `key "count"`)

	_, err = SelectKeyed(map[string]any{"1": []any{"a", 2.0}}, []string{"1"})
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "scalar", KindScalar.String())
	assert.Equal(t, "list", KindList.String())
	assert.Equal(t, "keyed", KindKeyed.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
