package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/odoo-bridge/internal/frame"
)

// LocalSource serves datasets from a directory tree:
// <root>/<dataset_id>/<sheet> where sheet is a .csv or .xlsx file.
type LocalSource struct {
	root string
}

func NewLocalSource(root string) *LocalSource {
	return &LocalSource{root: root}
}

func (s *LocalSource) Frame(ctx context.Context, datasetID, sheet string) (*frame.Frame, error) {
	path := filepath.Join(s.root, datasetID, filepath.Base(sheet))
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sheet %s: %w", sheet, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return parseXLSX(file)
	default:
		return parseCSV(file)
	}
}

func (s *LocalSource) Sheets(ctx context.Context, datasetID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, datasetID))
	if err != nil {
		return nil, fmt.Errorf("list dataset %s: %w", datasetID, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
