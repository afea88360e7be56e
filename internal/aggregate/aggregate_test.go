package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/broadlistening/internal/model"
)

func TestAggregator_SharedArgument(t *testing.T) {
	agg := New()
	agg.Add("A", []string{"x", "y"})
	agg.Add("B", []string{"x"})

	tables, err := agg.Result()
	require.NoError(t, err)

	assert.Equal(t, []model.Argument{
		{ID: "AA_0", Text: "x"},
		{ID: "AA_1", Text: "y"},
	}, tables.Arguments)
	assert.Equal(t, []model.Relation{
		{ArgumentID: "AA_0", CommentID: "A"},
		{ArgumentID: "AA_1", CommentID: "A"},
		{ArgumentID: "AA_0", CommentID: "B"},
	}, tables.Relations)
}

func TestAggregator_IDUsesPositionInOwningComment(t *testing.T) {
	agg := New()
	agg.Add("1", []string{"shared"})
	agg.Add("2", []string{"shared", "new"})

	args := agg.Arguments()
	require.Len(t, args, 2)
	assert.Equal(t, "A1_0", args[0].ID)
	assert.Equal(t, "A2_1", args[1].ID, "position counts reused texts too")
}

func TestAggregator_RepeatWithinComment(t *testing.T) {
	agg := New()
	agg.Add("7", []string{"dup", "dup"})

	assert.Len(t, agg.Arguments(), 1)
	assert.Equal(t, []model.Relation{
		{ArgumentID: "A7_0", CommentID: "7"},
		{ArgumentID: "A7_0", CommentID: "7"},
	}, agg.Relations())
}

func TestAggregator_CaseSensitive(t *testing.T) {
	agg := New()
	agg.Add("1", []string{"Parks", "parks"})

	assert.Len(t, agg.Arguments(), 2)
}

func TestAggregator_TableConsistency(t *testing.T) {
	agg := New()
	agg.Add("1", []string{"a", "b", "c"})
	agg.Add("2", []string{})
	agg.Add("3", []string{"c", "d", "a"})
	agg.Add("4", nil)
	agg.Add("5", []string{"e", "b"})

	tables, err := agg.Result()
	require.NoError(t, err)

	ids := map[string]bool{}
	texts := map[string]bool{}
	for _, arg := range tables.Arguments {
		assert.False(t, ids[arg.ID], "duplicate id %s", arg.ID)
		assert.False(t, texts[arg.Text], "duplicate text %s", arg.Text)
		ids[arg.ID] = true
		texts[arg.Text] = true
	}
	for _, rel := range tables.Relations {
		assert.True(t, ids[rel.ArgumentID], "relation references unknown argument %s", rel.ArgumentID)
	}
	assert.Len(t, tables.Relations, 8)
	assert.Len(t, tables.Arguments, 5)
}

func TestAggregator_Empty(t *testing.T) {
	agg := New()
	agg.Add("1", nil)
	agg.Add("2", []string{})

	_, err := agg.Result()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyArguments))
}

func TestAggregator_SnapshotsAreCopies(t *testing.T) {
	agg := New()
	agg.Add("1", []string{"a"})

	args := agg.Arguments()
	args[0].Text = "mutated"

	assert.Equal(t, "a", agg.Arguments()[0].Text)
}
