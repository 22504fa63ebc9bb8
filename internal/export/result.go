package export

import "fmt"

// ErrorKind classifies fatal export failures. Per-row problems are
// exception records, never ExportErrors.
type ErrorKind string

const (
	KindRegistryInvalid ErrorKind = "RegistryInvalid"
	KindRuleError       ErrorKind = "RuleError"
	KindOutputIntegrity ErrorKind = "OutputIntegrity"
	KindIOError         ErrorKind = "IOError"
)

// ExportError is the typed fatal result handed to the task runner. Model
// is empty when the failure precedes model iteration.
type ExportError struct {
	Kind  ErrorKind
	Model string
	Err   error
}

func (e *ExportError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (model %s): %v", e.Kind, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ModelSummary is the per-model slice of an ExportResult.
type ModelSummary struct {
	Model           string `json:"model"`
	RowsEmitted     int    `json:"rows_emitted"`
	ExceptionsCount int    `json:"exceptions_count"`
	Skipped         bool   `json:"skipped,omitempty"`
}

// Result summarizes a completed export run.
type Result struct {
	DatasetID       string         `json:"dataset_id"`
	ZipPath         string         `json:"zip_path"`
	Models          []ModelSummary `json:"models"`
	TotalRows       int            `json:"total_rows"`
	TotalExceptions int            `json:"total_exceptions"`
	ByCode          map[string]int `json:"by_code"`
}
