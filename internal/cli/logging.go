package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/weiway668/my-stock-system-sub002/internal/config"
	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
	"github.com/weiway668/my-stock-system-sub002/pkg/confkit"
	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}
	b := cfg.Backtest
	sched := cfg.FeeSchedule()

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Initial capital: %s", cfg.InitialCapital().StringFixed(2)),
		fmt.Sprintf("Slippage / risk-free: %s / %g", cfg.SlippageRate().String(), b.RiskFreeRate),
		fmt.Sprintf("Timezone: %s", cfg.Location()),
		fmt.Sprintf("Sizing: %s (lot size %d)", sizingLine(b), b.LotSize),
		fmt.Sprintf("Strategy: %s", strategyLine(b)),
		fmt.Sprintf("Indicators: sma %v, ema %v, atr %d, macd %t", b.SMAPeriods, b.EMAPeriods, b.ATRPeriod, b.MACD),
		sectionLine("Fee schedule", cfg.Fees, sched.Name),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("Journal: %s", journalLine(cfg.Journal)),
		fmt.Sprintf("Sweep parallelism: %d", cfg.Sweep.Parallelism),
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

// ResultSummaryLines describes a finished run.
func ResultSummaryLines(res *backtest.Result) []string {
	if res == nil {
		return []string{"Result: <nil>"}
	}
	head := fmt.Sprintf("Run %s [%s] %s: %s", res.RunID, res.Request.Symbol, res.Strategy, res.Status)
	if res.Failed() {
		return []string{head, "Error: " + res.Message}
	}
	m := res.Metrics
	ts := m.Trades
	return []string{
		head,
		fmt.Sprintf("Bars: %d (+%d warm-up), signals %d, fills %d", res.Bars, res.WarmUpBars, res.Signals, ts.OrdersFilled),
		fmt.Sprintf("Equity: %s -> %s (cash %s)", res.InitialCapital.StringFixed(2), res.FinalEquity.StringFixed(2), res.FinalCash.StringFixed(2)),
		fmt.Sprintf("Return: cumulative %s, annualized %s", pct(m.CumulativeReturn), pct(m.AnnualizedReturn)),
		fmt.Sprintf("Risk: volatility %s, max drawdown %s over %d days", pct(m.AnnualizedVolatility), pct(m.MaxDrawdown), m.MaxDrawdownDuration),
		fmt.Sprintf("Ratios: sharpe %.2f, sortino %.2f, calmar %.2f", m.SharpeRatio, m.SortinoRatio, m.CalmarRatio),
		fmt.Sprintf("Trades: %d closed, win rate %s, profit factor %.2f, net %s, costs %s",
			ts.TotalTrades, pct(ts.WinRate), ts.ProfitFactor, ts.NetProfit.StringFixed(2), ts.TotalCosts.StringFixed(2)),
		fmt.Sprintf("Rejections: %s", rejectionsLine(res)),
	}
}

// LogResultSummary emits ResultSummaryLines using logx.
func LogResultSummary(res *backtest.Result) {
	for _, line := range ResultSummaryLines(res) {
		logx.Infof("result • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T], fallback string) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: built-in %s", name, fallback)
	}
}

func sizingLine(b config.BacktestConf) string {
	if b.Sizing == "cash_fraction" {
		return fmt.Sprintf("%.0f%% of cash", b.CashFraction*100)
	}
	return fmt.Sprintf("%d lot(s)", b.Lots)
}

func journalLine(j config.JournalConf) string {
	if j.Disabled {
		return "disabled"
	}
	return fmt.Sprintf("%s (%s)", j.Dir, j.Format)
}

func rejectionsLine(res *backtest.Result) string {
	var parts []string
	for _, reason := range []ledger.RejectReason{ledger.RejectInsufficientCash, ledger.RejectInsufficientHoldings, ledger.RejectInvalidOrder} {
		if n := res.Rejections[reason]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func strategyLine(b config.BacktestConf) string {
	if b.Strategy == "rsi" {
		return fmt.Sprintf("rsi(%d) buy <= %g, exit >= %g", b.RSIPeriod, b.RSIOversold, b.RSIOverbought)
	}
	return fmt.Sprintf("threshold %g%%", b.ThresholdPct)
}
