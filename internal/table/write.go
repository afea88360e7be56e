package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/broadlistening/internal/model"
)

// Output file names inside a dataset directory
const (
	ArgumentsFile = "args.csv"
	RelationsFile = "relations.csv"
)

// WriteArguments writes the argument table (arg-id, argument)
func WriteArguments(path string, args []model.Argument) error {
	rows := make([][]string, 0, len(args)+1)
	rows = append(rows, []string{"arg-id", "argument"})
	for _, a := range args {
		rows = append(rows, []string{a.ID, a.Text})
	}
	return writeCSV(path, rows)
}

// WriteRelations writes the relation table (arg-id, comment-id)
func WriteRelations(path string, relations []model.Relation) error {
	rows := make([][]string, 0, len(relations)+1)
	rows = append(rows, []string{"arg-id", "comment-id"})
	for _, r := range relations {
		rows = append(rows, []string{r.ArgumentID, r.CommentID})
	}
	return writeCSV(path, rows)
}

// writeCSV writes rows to a temp file and renames it into place
func writeCSV(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
