// Package report turns simulation results into JSON, Markdown, terminal and
// spreadsheet output. It is the only place that knows about presentation.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

// Document is the serialised form of a simulation run
type Document struct {
	RunID                     uuid.UUID                  `json:"run_id"`
	Seed                      uint64                     `json:"seed"`
	StartedAt                 time.Time                  `json:"started_at"`
	State                     simulation.State           `json:"state"`
	SafeWithdrawalRateMonthly decimal.Decimal            `json:"safe_withdrawal_rate_monthly"`
	InitialValues             map[string]decimal.Decimal `json:"initial_values"`
	Months                    []domain.MonthlyRecord     `json:"months"`
}

// NewDocument snapshots a result for serialisation
func NewDocument(result *simulation.Result) Document {
	return Document{
		RunID:                     result.RunID,
		Seed:                      result.Seed,
		StartedAt:                 result.StartedAt,
		State:                     result.State,
		SafeWithdrawalRateMonthly: result.SafeWithdrawalRateMonthly,
		InitialValues:             result.InitialValues,
		Months:                    result.Records(),
	}
}

// JSON returns the indented JSON form of a result
func JSON(result *simulation.Result) ([]byte, error) {
	return json.MarshalIndent(NewDocument(result), "", "    ")
}

// ExportToFile writes result to path, choosing the format from the extension:
// .json, .md / .markdown / .txt, or .xlsx
func ExportToFile(result *simulation.Result, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err := JSON(result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return os.WriteFile(path, data, 0o644)

	case ".md", ".markdown", ".txt":
		return os.WriteFile(path, []byte(Markdown(result)), 0o644)

	case ".xlsx":
		f, err := XLSX(result)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := f.SaveAs(path); err != nil {
			return fmt.Errorf("failed to save workbook: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported export format %q", ext)
	}
}
