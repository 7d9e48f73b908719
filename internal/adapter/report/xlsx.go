package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

const (
	monthsSheet = "Months"
	assetsSheet = "Assets"
	chartSheet  = "Chart"
)

var monthsHeader = []interface{}{
	"Month", "Expenses JPY", "Expenses USD", "Withdrawal USD", "Total Withdrawn USD",
	"Realized P/L", "Cumulative Realized P/L", "FX Rate", "Portfolio Value USD",
}

var assetsHeader = []interface{}{
	"Month", "Asset", "Initial Value", "Value", "Withdrawal", "Realized P/L", "Monthly Change %", "All-Time Change %",
}

// XLSX builds a workbook with one row per month, one row per asset and month,
// and a line chart of the portfolio value
func XLSX(result *simulation.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", monthsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(assetsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", assetsSheet, err)
	}

	if err := f.SetSheetRow(monthsSheet, "A1", &monthsHeader); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(assetsSheet, "A1", &assetsHeader); err != nil {
		return nil, err
	}

	records := result.Records()
	assetRow := 2
	for i, rec := range records {
		row := []interface{}{
			rec.Month,
			rec.ExpensesJPY.InexactFloat64(),
			rec.ExpensesUSD.InexactFloat64(),
			rec.WithdrawalUSD.InexactFloat64(),
			rec.TotalWithdrawnUSD.InexactFloat64(),
			rec.RealizedPL.InexactFloat64(),
			rec.CumulativeRealized.InexactFloat64(),
			rec.FXRate.InexactFloat64(),
			rec.PortfolioValueUSD.InexactFloat64(),
		}
		if err := f.SetSheetRow(monthsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}

		for _, a := range rec.Assets {
			row := []interface{}{
				rec.Month,
				a.ID,
				a.InitialValue.InexactFloat64(),
				a.Value.InexactFloat64(),
				a.Withdrawal.InexactFloat64(),
				a.RealizedPL.InexactFloat64(),
				a.MonthlyChangePct.InexactFloat64(),
				a.TotalChangePct.InexactFloat64(),
			}
			if err := f.SetSheetRow(assetsSheet, fmt.Sprintf("A%d", assetRow), &row); err != nil {
				return nil, err
			}
			assetRow++
		}
	}

	if len(records) > 0 {
		if err := addValueChart(f, len(records)+1); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// addValueChart plots the portfolio value column of the months sheet
func addValueChart(f *excelize.File, lastRow int) error {
	if _, err := f.NewSheet(chartSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", chartSheet, err)
	}

	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$I$1", monthsSheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", monthsSheet, lastRow),
				Values:     fmt.Sprintf("%s!$I$2:$I$%d", monthsSheet, lastRow),
			},
		},
		Title: []excelize.RichTextRun{
			{Text: "Portfolio Value (USD)"},
		},
		Legend: excelize.ChartLegend{
			Position: "bottom",
		},
		Dimension: excelize.ChartDimension{
			Width:  960,
			Height: 540,
		},
	}

	if err := f.AddChart(chartSheet, "A1", chart); err != nil {
		return fmt.Errorf("failed to add chart: %w", err)
	}
	return nil
}
