package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"PredictionLedger/internal/accuracy"
	"PredictionLedger/internal/model"
)

var ratingIcon = map[accuracy.Rating]string{
	accuracy.RatingGood: "🟢",
	accuracy.RatingFair: "🟡",
	accuracy.RatingPoor: "🔴",
	accuracy.RatingNone: "⚪",
}

// FormatRunReport formats a finished daily run.
func FormatRunReport(e model.DailyExecutionLog) string {
	var b strings.Builder

	icon := "✅"
	switch {
	case e.Status == model.RunFailed:
		icon = "❌"
	case len(e.FailedSymbols) > 0:
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>Daily prediction run</b> | %s\n\n", icon, e.ExecutionDate.Format(time.DateOnly)))
	b.WriteString(fmt.Sprintf("Status: %s (%s)\n", e.Status, e.Type))
	b.WriteString(fmt.Sprintf("Symbols: %d total, %d ok, %d failed\n",
		len(e.ProcessedSymbols), len(e.SucceededSymbols), len(e.FailedSymbols)))
	b.WriteString(fmt.Sprintf("Duration: %s\n", (time.Duration(e.DurationMs) * time.Millisecond).String()))

	if len(e.FailedSymbols) > 0 {
		b.WriteString("\n<b>Failures:</b>\n")
		for _, s := range e.FailedSymbols {
			b.WriteString(fmt.Sprintf("  %s: %s\n", s, html.EscapeString(e.SymbolErrors[s])))
		}
	}
	if e.ErrorMessage != "" && e.Status == model.RunFailed {
		b.WriteString(fmt.Sprintf("\n%s\n", html.EscapeString(e.ErrorMessage)))
	}
	return b.String()
}

// FormatAccuracyDigest formats per-symbol accuracy, best MAPE first.
// Symbols without settled data are listed last.
func FormatAccuracyDigest(m model.PerformanceMetrics) string {
	var b strings.Builder
	b.WriteString("📊 <b>Prediction accuracy</b>\n\n")

	if m.SettledPredictions == 0 {
		b.WriteString(fmt.Sprintf("%d predictions tracked, none settled yet\n", m.TotalPredictions))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Overall MAPE: %.2f%% %s\n", m.OverallMape, ratingIcon[accuracy.RateMapeValue(m.OverallMape)]))
	if m.HasDirectionData {
		b.WriteString(fmt.Sprintf("Direction accuracy: %.1f%% %s\n",
			m.OverallDirectionAccuracy, ratingIcon[accuracy.RateDirectionValue(m.OverallDirectionAccuracy)]))
	}
	b.WriteString(fmt.Sprintf("Settled: %d / %d\n\n", m.SettledPredictions, m.TotalPredictions))

	rows := append([]model.AccuracySummary(nil), m.SymbolSummaries...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].HasMapeData != rows[j].HasMapeData {
			return rows[i].HasMapeData
		}
		return rows[i].AverageMape < rows[j].AverageMape
	})
	for _, s := range rows {
		b.WriteString(FormatSymbolLine(s))
	}
	return b.String()
}

// FormatSymbolLine renders one summary, using "n/a" for missing data.
func FormatSymbolLine(s model.AccuracySummary) string {
	mape := "n/a"
	if s.HasMapeData {
		mape = fmt.Sprintf("%.2f%%", s.AverageMape)
	}
	dir := "n/a"
	if s.HasDirectionData {
		dir = fmt.Sprintf("%.0f%%", s.DirectionAccuracyRate)
	}
	return fmt.Sprintf("%s <b>%s</b> MAPE %s | dir %s | %d/%d settled\n",
		ratingIcon[accuracy.RateMape(s)], s.Symbol, mape, dir, s.SettledPredictions, s.TotalPredictions)
}

// FormatStatus formats the published daily-run status.
func FormatStatus(st model.DailyRunStatus) string {
	var b strings.Builder
	b.WriteString("🕒 <b>Daily run status</b>\n\n")
	b.WriteString(fmt.Sprintf("Last status: %s\n", st.LastStatus))
	if st.LastExecutionDate != nil {
		b.WriteString(fmt.Sprintf("Last run: %s\n", st.LastExecutionDate.Format(time.DateOnly)))
		b.WriteString(fmt.Sprintf("Symbols: %d ok / %d failed of %d\n", st.SuccessCount, st.FailureCount, st.TotalSymbols))
	}
	if st.ErrorMessage != nil {
		b.WriteString(fmt.Sprintf("Error: %s\n", html.EscapeString(*st.ErrorMessage)))
	}
	if !st.Enabled {
		b.WriteString("Schedule: disabled\n")
	} else if st.NextScheduledRun != nil {
		b.WriteString(fmt.Sprintf("Next run: %s\n", st.NextScheduledRun.Format("2006-01-02 15:04 MST")))
	}
	return b.String()
}
