package model

import "fmt"

// Argument is a short atomic claim extracted from one or more comments
type Argument struct {
	ID   string `json:"arg_id"`   // Minted from the first comment that produced Text
	Text string `json:"argument"` // Unique across a run (exact match)
}

// Relation links a comment to an argument it produced.
// One row per extracted occurrence; pairs may repeat.
type Relation struct {
	ArgumentID string `json:"arg_id"`
	CommentID  string `json:"comment_id"`
}

// ArgumentID derives the deterministic argument id for the extracted string
// at position (0-based) within the given comment's extraction list.
func ArgumentID(commentID string, position int) string {
	return fmt.Sprintf("A%s_%d", commentID, position)
}
