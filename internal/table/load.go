// Package table reads comment exports and writes the argument tables as CSV.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/broadlistening/internal/model"
)

// ErrMissingColumn is returned when a configured column is absent from the input header
var ErrMissingColumn = errors.New("missing column")

// ErrDuplicateID is returned when two rows share a comment id.
// Argument ids are derived from comment ids, so they must be unique.
var ErrDuplicateID = errors.New("duplicate comment id")

// Columns names the input columns to read
type Columns struct {
	ID         string
	Body       string
	Properties []string
}

// DefaultColumns returns the column names used by comment exports
func DefaultColumns() Columns {
	return Columns{ID: "comment-id", Body: "comment-body"}
}

// LoadComments reads every comment from a CSV file. The header is checked
// against cols before any row is read.
func LoadComments(path string, cols Columns, stripMarkup bool) ([]model.Comment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadComments(f, cols, stripMarkup)
}

// ReadComments reads comments from CSV data; see LoadComments
func ReadComments(r io.Reader, cols Columns, stripMarkup bool) ([]model.Comment, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := columnIndex(header, cols)
	if err != nil {
		return nil, err
	}

	var comments []model.Comment
	seen := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id := record[index[cols.ID]]
		line, _ := reader.FieldPos(0)
		if first, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q on lines %d and %d", ErrDuplicateID, id, first, line)
		}
		seen[id] = line

		body := record[index[cols.Body]]
		if stripMarkup {
			body = StripMarkup(body)
		}

		comment := model.Comment{
			ID:   id,
			Body: body,
		}
		if len(cols.Properties) > 0 {
			comment.Attributes = make(map[string]string, len(cols.Properties))
			for _, prop := range cols.Properties {
				comment.Attributes[prop] = record[index[prop]]
			}
		}
		comments = append(comments, comment)
	}

	return comments, nil
}

// columnIndex maps every required column to its position in header
func columnIndex(header []string, cols Columns) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		// Spreadsheet exports often start with a byte order mark
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		positions[strings.TrimSpace(name)] = i
	}

	required := append([]string{cols.ID, cols.Body}, cols.Properties...)
	index := make(map[string]int, len(required))
	for _, name := range required {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		index[name] = pos
	}

	return index, nil
}
