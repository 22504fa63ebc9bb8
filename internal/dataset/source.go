// Package dataset adapts uploaded spreadsheet data into frames. Upload and
// profiling happen upstream; this package is the seam through which the
// orchestrator asks for a sheet's rows.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/odoo-bridge/internal/frame"
)

// Source produces the tabular frame for one sheet of one dataset. Sheet
// names are file names as registered at upload time (leads.csv,
// contacts.xlsx, ...).
type Source interface {
	Frame(ctx context.Context, datasetID, sheet string) (*frame.Frame, error)
	// Sheets lists the dataset's available sheet names.
	Sheets(ctx context.Context, datasetID string) ([]string, error)
}

// parseCSV reads a CSV stream into a frame. The first row is the header
// (profiling upstream guarantees one); a UTF-8 BOM is stripped; ragged
// rows are tolerated and short cells read as null.
func parseCSV(r io.Reader) (*frame.Frame, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return frame.New(0), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}

	return buildFrame(header, rows), nil
}

// parseXLSX reads the first sheet of a workbook into a frame.
func parseXLSX(r io.Reader) (*frame.Frame, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return frame.New(0), nil
	}
	all, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return frame.New(0), nil
	}
	header := all[0]
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	return buildFrame(header, all[1:]), nil
}

// buildFrame assembles the columnar frame. Cells that are absent (short
// rows) or empty strings become null; whitespace-only cells are trimmed to
// null as well, matching how profiling presents them.
func buildFrame(header []string, rows [][]string) *frame.Frame {
	fr := frame.New(len(rows))
	for col, name := range header {
		if name == "" {
			continue
		}
		cells := make([]*string, len(rows))
		for i, row := range rows {
			if col >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[col])
			if v == "" {
				continue
			}
			cells[i] = &v
		}
		fr.SetColumn(name, cells)
	}
	return fr
}

// stripBOM removes a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
