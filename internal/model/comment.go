package model

// Comment is a single public comment loaded from the input table
type Comment struct {
	ID   string `json:"comment_id"`
	Body string `json:"comment_body"`

	// Attributes carries the configured extra columns, untouched
	Attributes map[string]string `json:"attributes,omitempty"`
}
