// Package aggregate builds the argument and relation tables from
// per-comment extraction results.
package aggregate

import (
	"errors"

	"github.com/ppiankov/broadlistening/internal/model"
)

// ErrEmptyArguments is returned when a whole run produced no arguments.
// It usually means a broken prompt or a total model outage.
var ErrEmptyArguments = errors.New("no arguments were extracted")

// Tables is the final output of a run
type Tables struct {
	Arguments []model.Argument
	Relations []model.Relation
}

// Aggregator deduplicates arguments by exact text across a run.
// Not safe for concurrent use; feed it in comment order.
type Aggregator struct {
	ids       map[string]string
	arguments []model.Argument
	relations []model.Relation
}

// New creates an empty aggregator
func New() *Aggregator {
	return &Aggregator{ids: make(map[string]string)}
}

// Add records the arguments extracted from one comment. The first comment
// to yield a text owns its argument id; later occurrences reuse it.
func (a *Aggregator) Add(commentID string, extracted []string) {
	for pos, text := range extracted {
		id, seen := a.ids[text]
		if !seen {
			id = model.ArgumentID(commentID, pos)
			a.ids[text] = id
			a.arguments = append(a.arguments, model.Argument{ID: id, Text: text})
		}
		a.relations = append(a.relations, model.Relation{ArgumentID: id, CommentID: commentID})
	}
}

// Arguments returns the distinct arguments in first-seen order
func (a *Aggregator) Arguments() []model.Argument {
	return append([]model.Argument(nil), a.arguments...)
}

// Relations returns one row per extracted occurrence in insertion order
func (a *Aggregator) Relations() []model.Relation {
	return append([]model.Relation(nil), a.relations...)
}

// Result returns both tables, or ErrEmptyArguments if nothing was extracted
func (a *Aggregator) Result() (Tables, error) {
	if len(a.arguments) == 0 {
		return Tables{}, ErrEmptyArguments
	}
	return Tables{
		Arguments: a.Arguments(),
		Relations: a.Relations(),
	}, nil
}
