package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"PredictionLedger/internal/model"
	"PredictionLedger/internal/notifier"
)

const helpText = "Available commands:\n" +
	"• /status\n" +
	"• /accuracy [SYMBOL]\n" +
	"• /top\n" +
	"• /symbols\n" +
	"• /history\n" +
	"• /run [force]"

// HandleCommand answers a chat command. An empty reply means the result is
// delivered some other way, like the run report of /run.
func (s *Service) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch name {
	case "/status":
		return notifier.FormatStatus(s.DailyStatus())
	case "/accuracy":
		if len(args) > 0 {
			sum, err := s.AccuracySummary(args[0], nil, nil)
			if err != nil {
				return fmt.Sprintf("accuracy %s failed: %s", html.EscapeString(args[0]), html.EscapeString(err.Error()))
			}
			if sum.TotalPredictions == 0 {
				return fmt.Sprintf("No predictions recorded for %s", html.EscapeString(sum.Symbol))
			}
			return notifier.FormatSymbolLine(sum)
		}
		m, err := s.Overall()
		if err != nil {
			return fmt.Sprintf("accuracy failed: %s", html.EscapeString(err.Error()))
		}
		return notifier.FormatAccuracyDigest(m)
	case "/top":
		top, err := s.TopPerformers(5)
		if err != nil {
			return fmt.Sprintf("top performers failed: %s", html.EscapeString(err.Error()))
		}
		if len(top) == 0 {
			return fmt.Sprintf("No symbol has %d settled predictions yet", s.MinSettled)
		}
		var b strings.Builder
		b.WriteString("🏆 <b>Top performers</b>\n\n")
		for i, sum := range top {
			b.WriteString(fmt.Sprintf("%d. %s", i+1, notifier.FormatSymbolLine(sum)))
		}
		return b.String()
	case "/symbols":
		symbols, err := s.Symbols()
		if err != nil {
			return fmt.Sprintf("symbols failed: %s", html.EscapeString(err.Error()))
		}
		if len(symbols) == 0 {
			return "No predictions recorded yet"
		}
		return "Tracked symbols: " + strings.Join(symbols, ", ")
	case "/history":
		logs := s.DailyHistory(5)
		if len(logs) == 0 {
			return "No daily runs yet"
		}
		var b strings.Builder
		b.WriteString("📜 <b>Recent runs</b>\n\n")
		for _, l := range logs {
			b.WriteString(fmt.Sprintf("%s %s %s: %d/%d ok\n",
				l.ExecutionDate.Format(time.DateOnly), l.Type, l.Status,
				len(l.SucceededSymbols), len(l.ProcessedSymbols)))
		}
		return b.String()
	case "/run":
		req := model.DailyRunRequest{Type: model.ExecutionManual}
		if len(args) > 0 && strings.EqualFold(args[0], "force") {
			req.Force = true
		}
		_, err := s.TriggerDailyRun(ctx, req)
		if errors.Is(err, model.ErrAlreadyRunning) {
			return "A daily run is already in progress"
		}
		if err != nil {
			return fmt.Sprintf("daily run failed: %s", html.EscapeString(err.Error()))
		}
		return ""
	default:
		return helpText
	}
}
