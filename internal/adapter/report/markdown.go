package report

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/glamour"
	md "github.com/nao1215/markdown"

	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

// Markdown renders the month-by-month summary of a run
func Markdown(result *simulation.Result) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Withdrawal Simulation")
	doc.PlainText(fmt.Sprintf("Run %s, seed %d, %d month(s), %s", result.RunID, result.Seed, result.Len(), result.State))
	doc.PlainText(fmt.Sprintf("Safe withdrawal rate (monthly, not applied): %s%%", result.SafeWithdrawalRateMonthly.Mul(hundredPct).StringFixed(2)))

	for _, rec := range result.Records() {
		doc.H2(fmt.Sprintf("Month %d", rec.Month))

		rows := make([][]string, 0, len(rec.Assets))
		for _, a := range rec.Assets {
			rows = append(rows, []string{
				a.ID,
				formatMoney(a.InitialValue, USD),
				formatMoney(a.Value, USD),
				formatMoney(a.Withdrawal, USD),
				formatSignedMoney(a.RealizedPL, USD),
				formatPercent(a.MonthlyChangePct),
				formatPercent(a.TotalChangePct),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Asset", "Initial", "Final", "Withdrawn", "Realized P/L", "Monthly", "All-Time"},
			Rows:   rows,
		})

		doc.BulletList(
			fmt.Sprintf("Expenses: %s (%s)", formatMoney(rec.ExpensesJPY, JPY), formatMoney(rec.ExpensesUSD, USD)),
			fmt.Sprintf("Withdrawn this month: %s", formatMoney(rec.WithdrawalUSD, USD)),
			fmt.Sprintf("Total withdrawn: %s", formatMoney(rec.TotalWithdrawnUSD, USD)),
			fmt.Sprintf("Realized P/L: %s (cumulative %s)", formatSignedMoney(rec.RealizedPL, USD), formatSignedMoney(rec.CumulativeRealized, USD)),
			fmt.Sprintf("FX rate: %s", formatRate(rec.FXRate)),
			fmt.Sprintf("Total portfolio value: %s", formatMoney(rec.PortfolioValueUSD, USD)),
		)
	}

	return doc.String()
}

// TrialsMarkdown renders the summary of a Monte Carlo batch
func TrialsMarkdown(summary *simulation.TrialSummary) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Monte Carlo Summary")
	doc.Table(md.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Trials", fmt.Sprintf("%d", summary.Trials)},
			{"Depleted", fmt.Sprintf("%d", summary.Depleted)},
			{"Success rate", summary.SuccessRate.Mul(hundredPct).StringFixed(1) + "%"},
			{"P10 final value", formatMoney(summary.P10Final, USD)},
			{"Median final value", formatMoney(summary.MedianFinal, USD)},
			{"P90 final value", formatMoney(summary.P90Final, USD)},
		},
	})

	return doc.String()
}

// Render styles Markdown for a terminal. style is a glamour style name
// ("dark", "light", "notty", ...); on failure the raw Markdown is returned.
func Render(markdown, style string) string {
	if style == "" {
		style = "notty"
	}
	out, err := glamour.Render(markdown, style)
	if err != nil {
		return markdown
	}
	return out
}
