package search

import "errors"

// ErrUnavailable means the index cannot answer right now; callers fall back
// to scanning the store.
var ErrUnavailable = errors.New("search index unavailable")

// TaskDocument is the data we index for a task. ColumnIDs lists every column
// holding the task so results can be limited to what the caller can see.
type TaskDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Label       string   `json:"label"`
	LabelType   string   `json:"labelType"`
	ColumnIDs   []string `json:"columnIds"`
}

// Query describes a task search limited to a set of columns.
type Query struct {
	Text      string
	ColumnIDs []string
	Limit     int
}
