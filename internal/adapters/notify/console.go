// Package notify imprime resultados del engine en consola.
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/vanguard/internal/application/strategy"
	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console escribe resultados formateados a un writer.
type Console struct {
	out  io.Writer
	json bool
}

// NewConsole crea un notificador que escribe a stdout.
// Con jsonOutput imprime el resultado crudo en JSON, para pipes y scripts.
func NewConsole(jsonOutput bool) *Console {
	return &Console{out: os.Stdout, json: jsonOutput}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, jsonOutput bool) *Console {
	return &Console{out: w, json: jsonOutput}
}

// PrintExecution imprime el resultado de una ejecución.
func (c *Console) PrintExecution(result domain.TradeExecutionResult) error {
	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] execution %s — %s\n", now, orDash(result.IntentID), result.Status)
	if result.Reason != "" {
		fmt.Fprintf(c.out, "  reason: %s\n", result.Reason)
	}

	if p := result.Placement; p != nil {
		table := tablewriter.NewWriter(c.out)
		table.Header("Status", "Filled$", "AvgPrice", "Slippage", "Fills", "OrderID")
		table.Append(
			string(p.Status),
			fmt.Sprintf("$%.2f", p.FilledSizeUSD),
			floatLabel(p.AvgPrice, "%.4f"),
			floatLabel(p.SlippageBps, "%.1f bps"),
			fmt.Sprintf("%d", p.FillCount),
			orDash(p.ExternalOrderID),
		)
		table.Render()
	}

	c.printRisk(result.Risk)
	return nil
}

// printRisk imprime el veredicto de riesgo, con tabla de violaciones si las hay.
func (c *Console) printRisk(risk domain.RiskEvaluationResult) {
	if risk.Allowed {
		fmt.Fprintf(c.out, "  risk: allowed (projected exposure $%.2f)\n", risk.ProjectedExposureUSD)
		return
	}
	if len(risk.Violations) == 0 {
		return // resultado sin evaluación (p.ej. dry-run deshabilitado)
	}

	fmt.Fprintf(c.out, "  risk: REJECTED — %d violations\n", len(risk.Violations))
	table := tablewriter.NewWriter(c.out)
	table.Header("Check", "Actual", "Limit")
	for _, v := range risk.Violations {
		table.Append(string(v.Code), fmt.Sprintf("%.2f", v.Actual), fmt.Sprintf("%.2f", v.Limit))
	}
	table.Render()
}

// PrintCandidates imprime la tabla de mercados candidatos.
func (c *Console) PrintCandidates(candidates []strategy.Candidate) error {
	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}

	if len(candidates) == 0 {
		fmt.Fprintf(c.out, "[%s] no candidate markets\n", time.Now().Format("15:04:05"))
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Vol24h", "Liquidity", "Spread", "Score")
	for i, cand := range candidates {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(cand.Market.Question, 40),
			fmt.Sprintf("$%.0f", cand.Market.VolumeUSD),
			fmt.Sprintf("$%.0f", cand.Market.LiquidityUSD),
			fmt.Sprintf("%.1f bps", cand.SpreadBps),
			fmt.Sprintf("%.0f", cand.Score),
		)
	}
	table.Render()
	return nil
}

// --- helpers ---

func floatLabel(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
